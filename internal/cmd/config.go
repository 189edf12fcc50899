package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/canvass/internal/config"
	"github.com/felixgeelhaar/canvass/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View canvass configuration",
	Long: `Inspect the effective configuration: built-in defaults, overlaid by
~/.canvass/config.yaml (or --config), CANVASS_* environment variables (a
.env file in the working directory is read too) and the global flags.

Examples:
  # Show the effective configuration, secrets masked
  canvass config view

  # Show the configuration file path
  canvass config path

  # Write a config file with the defaults
  canvass config init
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing configuration file")

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cc.Config.Redacted()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	fmt.Fprintln(cmd.OutOrStdout(), cc.ConfigPath)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(cc.ConfigPath); err == nil && !force {
		return errors.Newf(errors.ErrCodeConfigInvalid, "config file already exists: %s", cc.ConfigPath).
			WithSuggestion("Use --force to overwrite it")
	}

	// Secrets belong in the environment, not the file.
	if err := config.Default().Save(cc.ConfigPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cc.ConfigPath)
	return nil
}
