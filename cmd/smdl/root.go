package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"smdl/pkg/config"
	"smdl/pkg/logger"
	"smdl/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "smdl [username]",
	Short: "Mirror a SmugMug account to a local directory",
	Long: `smdl downloads every photo and video of a SmugMug account into a local
directory tree that mirrors the account's album paths.

Files that already exist locally are skipped, so running it again only
fetches what is new. Private albums need a password or a session token.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColorEnabled(!noColor)
		ui.SetQuietMode(quiet)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// "smdl <username>" is shorthand for "smdl download <username>"
		if len(args) == 1 && !isKnownCommand(cmd, args[0]) {
			return runDownload(cmd, args)
		}
		return cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		ui.PrintError("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default: .smdl.yaml or ~/.config/smdl/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&notifications, "notifications", false, "notify when the run finishes")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print every file and all logs")

	addDownloadFlags(rootCmd)

	rootCmd.SetVersionTemplate(`smdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with extra command flags and loads
// the configuration with the usual precedence.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"log-level":     logLevel,
		"log-file":      logFile,
		"no-color":      noColor,
		"notifications": notifications,
	}
	for k, v := range extra {
		flags[k] = v
	}
	return config.Load(configFile, flags)
}

// initLogging installs the console logger. Without --verbose or an explicit
// level the console only shows warnings, so progress output stays readable.
func initLogging(cfg *config.Config) error {
	logCfg := cfg.Logging
	if !verbose && logLevel == "" && os.Getenv("SMDL_LOG_LEVEL") == "" {
		logCfg.Level = "warn"
	}
	if quiet {
		logCfg.Level = "error"
	}
	return logger.Initialize(&logCfg)
}

// isKnownCommand reports whether arg names a subcommand of parent
func isKnownCommand(parent *cobra.Command, arg string) bool {
	for _, cmd := range parent.Commands() {
		if cmd.Name() == arg || cmd.HasAlias(arg) {
			return true
		}
	}
	return arg == "help"
}
