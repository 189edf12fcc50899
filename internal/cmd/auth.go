package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/canvass/internal/auth"
	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/identity"
	"github.com/felixgeelhaar/canvass/internal/tui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the canvass backend",
	Long: `Log in as a user. The backend issues a session token, which is saved
together with your user id in ~/.canvass/identity.json.

With --token a token issued elsewhere is stored as is; the user id is read
from it without contacting the backend.

Without flags you are prompted for your user id.

Examples:
  canvass login --user alice
  canvass login --token "$CANVASS_TOKEN"`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved identity",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().String("user", "", "user id to log in as")
	loginCmd.Flags().String("token", "", "previously issued session token")
	loginCmd.MarkFlagsMutuallyExclusive("user", "token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	user, _ := cmd.Flags().GetString("user")
	token, _ := cmd.Flags().GetString("token")

	st, err := cc.IdentityStore()
	if err != nil {
		return err
	}
	session := identity.NewSession(st)
	if err := session.Restore(cmd.Context()); err != nil {
		cc.Logger.WithError(err).Warn("ignoring unreadable identity file")
	}

	if token != "" {
		return loginWithToken(cmd.Context(), cmd, session, token)
	}

	if user == "" {
		if !tui.ShouldPrompt() {
			return errors.New(errors.ErrCodeIdentityInvalid, "no user id given").
				WithSuggestion("Pass --user <id> when not running in a terminal")
		}
		current, _ := session.UserID()
		if user, err = tui.PromptUserID(current); err != nil {
			return err
		}
	}
	user = strings.TrimSpace(user)
	if user == "" {
		return errors.New(errors.ErrCodeIdentityInvalid, "user id cannot be empty")
	}

	if current, ok := session.UserID(); ok && current != user && tui.ShouldPrompt() {
		confirmed, err := tui.PromptForConfirmation(fmt.Sprintf("Switch from %s to %s?", current, user), true)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintf(cmd.OutOrStdout(), "Still logged in as %s\n", current)
			return nil
		}
	}

	client := cc.Client(nil)
	resp, err := client.Login(cmd.Context(), user)
	if err != nil {
		return err
	}
	if err := session.Login(cmd.Context(), resp.UserID, resp.Token); err != nil {
		return err
	}

	cc.Logger.Debug("logged in", "user_id", resp.UserID, "expires_at", resp.ExpiresAt)
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session valid until %s)\n",
		resp.UserID, resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func loginWithToken(ctx context.Context, cmd *cobra.Command, session *identity.Session, token string) error {
	user, err := auth.SubjectUnverified(token)
	if err != nil {
		return err
	}
	if err := session.Login(ctx, user, token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	session, err := cc.Session(cmd.Context())
	if err != nil {
		return err
	}

	user, ok := session.UserID()
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		return nil
	}
	if err := session.Logout(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s.\n", user)
	fmt.Fprintln(cmd.OutOrStdout(), "Use 'canvass login' to log in again.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	session, err := cc.Session(cmd.Context())
	if err != nil {
		return err
	}
	user, err := session.RequireUserID()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), user)
	return nil
}
