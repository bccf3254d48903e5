package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smdl/pkg/auth"
	"smdl/pkg/smugmug"
	"smdl/pkg/ui"
)

var (
	loginWithSession bool
	verifyLogin      bool
	logoutAll        bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored SmugMug credentials",
	Long: `Manage stored SmugMug credentials.

Credentials are kept in, in order of preference:
  - the system keychain
  - an encrypted file in the smdl config directory
  - SMDL_USERNAME, SMDL_PASSWORD and SMDL_SESSION_ID (read only)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a password or session token for an account",
	Example: `  # Store a password
  smdl auth login johndoe

  # Store an SMSESS session token instead
  smdl auth login johndoe --session-token

  # Check the credentials against SmugMug before saving
  smdl auth login johndoe --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)

	loginCmd.Flags().BoolVar(&loginWithSession, "session-token", false, "store an SMSESS session token instead of a password")
	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "check a password against SmugMug before saving")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		fmt.Fprint(out, "SmugMug username: ")
		if username, err = readLine(reader); err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if username == "" {
		return errors.New("username is required")
	}

	if manager.Exists(username) {
		fmt.Fprintf(out, "Credentials for '%s' already exist. Replace them? (y/N): ", username)
		answer, _ := readLine(reader)
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	account := &auth.Account{Username: username}
	if loginWithSession {
		auth.ShowSessionTokenGuide(out)
		fmt.Fprint(out, "\nSMSESS value (hidden): ")
		account.SessionToken, err = readSecret(reader, out)
	} else {
		fmt.Fprint(out, "Password (hidden): ")
		account.Password, err = readSecret(reader, out)
	}
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	if err := account.Validate(); err != nil {
		return err
	}

	if verifyLogin {
		if err := verifyAccount(cmd.Context(), account); err != nil {
			return fmt.Errorf("credentials were not accepted: %w", err)
		}
		ui.PrintSuccess("SmugMug accepted the credentials")
	}

	if err := manager.Store(account); err != nil {
		return err
	}
	ui.PrintSuccess("Credentials stored for " + username)
	fmt.Fprintf(out, "\nMirror the account with:\n  smdl download %s\n", username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var targets []string
	switch {
	case logoutAll:
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		for _, a := range accounts {
			targets = append(targets, a.Username)
		}
	case len(args) == 1:
		targets = []string{args[0]}
	default:
		return errors.New("name an account or pass --all")
	}

	if len(targets) == 0 {
		ui.PrintInfo("Stored accounts", "none")
		return nil
	}

	var errs []error
	for _, username := range targets {
		if err := manager.Delete(username); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", username, err))
			continue
		}
		ui.PrintSuccess("Removed " + username)
	}
	return errors.Join(errs...)
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'smdl auth login' to add one")
		return nil
	}
	printAccounts(cmd.OutOrStdout(), accounts)
	return nil
}

func printAccounts(w io.Writer, accounts []*auth.Account) {
	for i, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Fprintf(w, "%d. %s\n", i+1, masked.Username)
		if masked.Password != "" {
			fmt.Fprintf(w, "   Password:      %s\n", masked.Password)
		}
		if masked.SessionToken != "" {
			fmt.Fprintf(w, "   Session token: %s\n", masked.SessionToken)
		}
		if !masked.LastModified.IsZero() {
			fmt.Fprintf(w, "   Saved:         %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
}

// verifyAccount authenticates once against the configured endpoints
func verifyAccount(ctx context.Context, account *auth.Account) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	sess, err := smugmug.NewSession(smugmug.SessionConfig{
		Endpoints: smugmug.Endpoints{
			APIBaseURL: cfg.SmugMug.APIBaseURL,
			AccountURL: cfg.SmugMug.AccountURL,
		},
		UserAgent: cfg.SmugMug.UserAgent,
	}, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.SmugMug.RequestTimeout)
	defer cancel()
	return sess.Authenticate(ctx, account.Username, account.Credentials())
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo from a terminal, or a plain line otherwise
func readSecret(r *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(r)
}
