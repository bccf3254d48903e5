package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smdl/pkg/auth"
	"smdl/pkg/config"
	"smdl/pkg/logger"
	"smdl/pkg/scraper"
	"smdl/pkg/smugmug"
	"smdl/pkg/ui"
	"smdl/pkg/ui/tui"
)

var (
	password    string
	session     string
	outputDir   string
	albumNames  string
	folder      string
	accountName string
	concurrent  int
	rateLimit   int
	maxRetries  int
	useTUI      bool
)

// maxListedFailures bounds the failures printed after a run
const maxListedFailures = 20

var errInterrupted = errors.New("interrupted by user")

var downloadCmd = &cobra.Command{
	Use:     "download [username]",
	Aliases: []string{"dl"},
	Short:   "Mirror the albums of a SmugMug account",
	Long: `Mirror the albums of a SmugMug account into the output directory.

Each album lands in <output>/<album url path>/ and files that already exist
are skipped. Credentials are taken from, in order:
  - --password / --session
  - the smugmug section of the config file and SMDL_* variables
  - credentials stored with 'smdl auth login' (--account picks one)

Without credentials only public albums are visible.`,
	Example: `  # Mirror everything public
  smdl download johndoe

  # Log in and mirror two albums
  smdl download johndoe -p 'secret' --albums 'Trip$Party'

  # Mirror one folder with a session token and the live dashboard
  smdl johndoe -s "$SMSESS" --folder /Travel --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addDownloadFlags(downloadCmd)
}

// addDownloadFlags registers the download flags on cmd, so they work both
// on "smdl download" and on the root shorthand.
func addDownloadFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&password, "password", "p", "", "SmugMug account password")
	flags.StringVarP(&session, "session", "s", "", "SMSESS session token")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory (default \"output/\")")
	flags.StringVar(&albumNames, "albums", "", "'$'-separated album names to mirror")
	flags.StringVar(&folder, "folder", "", "only mirror albums whose path contains this folder")
	flags.StringVarP(&accountName, "account", "a", "", "use credentials stored for this account")
	flags.IntVar(&concurrent, "concurrent", 0, "concurrent downloads per album (default 8)")
	flags.IntVar(&rateLimit, "rate-limit", 0, "API requests per minute")
	flags.IntVar(&maxRetries, "max-retries", 0, "attempts per API fetch (default 5)")
	flags.BoolVar(&useTUI, "tui", false, "show the interactive dashboard")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"password":    password,
		"session":     session,
		"output":      outputDir,
		"concurrent":  concurrent,
		"rate-limit":  rateLimit,
		"max-retries": maxRetries,
	})
	if err != nil {
		return err
	}

	username := cfg.SmugMug.Username
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		return errors.New("a SmugMug username is required")
	}

	if !useTUI {
		if err := initLogging(cfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	creds, source, err := resolveCredentials(cfg, username, accountName, auth.NewManager)
	if err != nil {
		return err
	}
	logger.WithField("username", username).InfoWithFields("Credentials resolved", map[string]interface{}{
		"mode":   creds.Mode(),
		"source": source,
	})

	opts := scraper.Options{
		Username:    username,
		Credentials: creds,
		Selector: smugmug.Selector{
			Names:  smugmug.ParseAlbumNames(albumNames),
			Folder: strings.TrimSpace(folder),
		},
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *scraper.Summary
	if useTUI {
		summary, err = runWithTUI(ctx, cfg, opts)
	} else {
		ui.PrintLogo()
		ui.PrintInfo("Account", username)
		ui.PrintInfo("Output", cfg.Output.BaseDirectory)
		summary, err = runPlain(ctx, cfg, opts)
	}
	if err != nil {
		return fmt.Errorf("mirror of %s failed: %w", username, err)
	}

	printSummary(summary)
	return nil
}

// resolveCredentials picks the credentials for username. Explicit values in
// cfg win; otherwise a stored account is looked up, falling back to public
// access when none exists. Naming a missing account is an error.
func resolveCredentials(cfg *config.Config, username, account string, newManager func() (*auth.Manager, error)) (smugmug.Credentials, string, error) {
	if cfg.SmugMug.Password != "" || cfg.SmugMug.SessionID != "" {
		return smugmug.Credentials{
			Password:     cfg.SmugMug.Password,
			SessionToken: cfg.SmugMug.SessionID,
		}, "config", nil
	}

	manager, err := newManager()
	if err != nil {
		if account != "" {
			return smugmug.Credentials{}, "", fmt.Errorf("failed to open credential store: %w", err)
		}
		logger.WithError(err).Warn("Credential store unavailable")
		return smugmug.Credentials{}, "none", nil
	}

	lookup := account
	if lookup == "" {
		lookup = username
	}
	stored, err := manager.Retrieve(lookup)
	switch {
	case err == nil:
		return stored.Credentials(), "stored:" + stored.Username, nil
	case account != "":
		return smugmug.Credentials{}, "", fmt.Errorf("no stored credentials for account %q (see 'smdl auth list')", account)
	default:
		return smugmug.Credentials{}, "none", nil
	}
}

func runPlain(ctx context.Context, cfg *config.Config, opts scraper.Options) (*scraper.Summary, error) {
	s, err := scraper.NewFromConfig(cfg, logger.GetLogger())
	if err != nil {
		return nil, err
	}

	var observer ui.Observer = ui.NopObserver{}
	if !quiet {
		observer = ui.NewProgressDisplay(os.Stdout, verbose)
	}
	s.SetObserver(withNotifications(cfg, observer, os.Stdout))

	return s.Run(ctx, opts)
}

// runWithTUI runs the dashboard and the mirror side by side. Logs go to
// the dashboard's log panel; quitting the dashboard stops the mirror.
func runWithTUI(ctx context.Context, cfg *config.Config, opts scraper.Options) (*scraper.Summary, error) {
	dashboard := tui.New()
	if err := logger.InitializeWithSink(&cfg.Logging, dashboard.LogWriter()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	// The console is ours again once the dashboard is gone
	defer func() { _ = initLogging(cfg) }()

	s, err := scraper.NewFromConfig(cfg, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	s.SetObserver(withNotifications(cfg, dashboard, io.Discard))

	g, gctx := errgroup.WithContext(ctx)
	var summary *scraper.Summary

	g.Go(func() error {
		if err := dashboard.Run(); err != nil {
			return fmt.Errorf("dashboard failed: %w", err)
		}
		if dashboard.Interrupted() {
			return errInterrupted
		}
		return nil
	})

	g.Go(func() error {
		var err error
		summary, err = s.Run(gctx, opts)
		return err
	})

	err = g.Wait()
	if errors.Is(err, errInterrupted) {
		err = nil
	}
	return summary, err
}

// withNotifications wraps obs with the configured run-end notification
func withNotifications(cfg *config.Config, obs ui.Observer, out io.Writer) ui.Observer {
	if !cfg.Notifications.Enabled {
		return obs
	}
	n := ui.NewNotifier(cfg.Notifications.NotificationType, out)
	return ui.WithNotifications(obs, n, cfg.Notifications.OnComplete, cfg.Notifications.OnError, func(err error) {
		logger.WithError(err).Warn("Notification failed")
	})
}

func printSummary(s *scraper.Summary) {
	if s == nil {
		return
	}

	fmt.Println()
	ui.PrintSuccess(fmt.Sprintf("Finished %s in %s", s.Username, s.Duration.Round(time.Millisecond)))
	ui.PrintInfo("Albums", fmt.Sprint(s.Counts.Albums))
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d (%s)", s.Counts.Downloaded, ui.FormatBytes(s.Counts.Bytes)))
	ui.PrintInfo("Skipped", fmt.Sprint(s.Counts.Skipped))
	ui.PrintInfo("Failed", fmt.Sprint(s.Counts.Failed))

	for i, f := range s.Failures {
		if i == maxListedFailures {
			ui.PrintWarning("  ... and %d more (see the log)", len(s.Failures)-maxListedFailures)
			break
		}
		name := f.Album
		if f.File != "" {
			name += "/" + f.File
		}
		ui.PrintWarning("  %s: %v", name, f.Err)
	}

	if s.Stopped {
		ui.PrintWarning("Stopped before every album was mirrored; run again to resume")
	}
}
