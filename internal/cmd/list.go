package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List questionnaires and when you last answered them",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	session, err := cc.Session(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := session.RequireUserID(); err != nil {
		return err
	}

	summaries, err := cc.Client(session).ListQuestionnaires(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No questionnaires available.")
		return nil
	}
	return writeSummaries(cmd.OutOrStdout(), summaries, time.Now())
}

func writeSummaries(w io.Writer, summaries []questionnaire.Summary, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQUESTIONS\tLAST ANSWERED")
	for _, s := range summaries {
		last := "never"
		if s.LastSubmittedAt != nil {
			last = humanize.RelTime(*s.LastSubmittedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.ID, s.Name, s.Questions, last)
	}
	return tw.Flush()
}
