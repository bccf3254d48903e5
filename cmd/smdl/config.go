package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"smdl/pkg/config"
	"smdl/pkg/ui"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage smdl configuration files.

Values are merged with this precedence:
  - command line flags (highest)
  - SMDL_* environment variables, including .env and ~/.smdl.env
  - the configuration file
  - built-in defaults (lowest)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

const configHeader = `# smdl configuration
#
# Every value can be overridden with an SMDL_* environment variable
# (SMDL_USERNAME, SMDL_PASSWORD, SMDL_SESSION_ID, SMDL_OUTPUT_DIR, ...)
# or a command line flag. Prefer 'smdl auth login' over storing a
# password here.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = ".smdl.yaml"
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := writeDefaultConfig(path); err != nil {
		return err
	}
	ui.PrintSuccess("Wrote " + path)
	return nil
}

func writeDefaultConfig(path string) error {
	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return err
	}

	// Save has no room for comments, so prepend the header afterwards
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(configHeader), body...), 0600)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	return printConfig(cmd.OutOrStdout(), cfg)
}

func printConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return enc.Close()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, loc := range config.ConfigLocations() {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}
	if path == "" {
		ui.PrintWarning("No configuration file found; defaults and environment only")
	} else {
		ui.PrintInfo("File", path)
	}

	if _, err := loadConfig(nil); err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				ui.PrintError("  %v", e)
			}
		}
		return err
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
