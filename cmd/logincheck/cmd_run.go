package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logincheck/internal/browser"
	"logincheck/internal/flow"
	"logincheck/internal/logging"
	"logincheck/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runURL       string
	runUsername  string
	runPassword  string
	runHeadless  bool
	runTimeout   time.Duration
	runChromeBin string
	runArtifacts string
	runNoHistory bool
)

// newProvider builds the session provider for a run. Tests replace it.
var newProvider = func(bc browser.Config, logger *zap.Logger) flow.SessionProvider {
	return browser.NewProvisioner(bc, logger)
}

// runCmd executes one login verification
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the login verification once",
	Long: `Launches Chrome, opens the target URL, fills in the credentials, submits the
form and asserts that the post-login container is visible.

Flags override the config file, which overrides the built-in saucedemo defaults.
Exit status is 1 when the verification fails.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "Login page URL")
	runCmd.Flags().StringVar(&runUsername, "username", "", "Login username")
	runCmd.Flags().StringVar(&runPassword, "password", "", "Login password")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run Chrome without a window")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Bound on each wait (elements, post-login URL)")
	runCmd.Flags().StringVar(&runChromeBin, "chrome-bin", "", "Chrome executable to launch")
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "", "Directory for failure screenshots (empty disables)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history database")
}

// applyRunFlags layers explicit flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	if runURL != "" {
		cfg.Target.URL = runURL
	}
	if runUsername != "" {
		cfg.Credentials.Username = runUsername
	}
	if runPassword != "" {
		cfg.Credentials.Password = runPassword
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = runHeadless
	}
	if runTimeout > 0 {
		cfg.Target.Timeout = runTimeout.String()
	}
	if runChromeBin != "" {
		cfg.Browser.ExecutablePath = runChromeBin
	}
	if cmd.Flags().Changed("artifacts") {
		cfg.Browser.ArtifactsDir = runArtifacts
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ctrl+C cancels the run; the flow still releases the browser.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog := logs.Get(logging.CategoryBoot)
	provider := newProvider(cfg.BrowserConfig(), logs.Get(logging.CategoryBrowser))

	opts := []flow.Option{flow.WithLogger(logs.Get(logging.CategoryFlow))}
	if cfg.Browser.ArtifactsDir != "" {
		opts = append(opts, flow.WithArtifactsDir(cfg.Browser.ArtifactsDir))
	}

	res, runErr := flow.New(cfg.FlowConfig(), provider, opts...).Run(ctx)

	if !runNoHistory && cfg.History.DatabasePath != "" {
		if err := recordRun(context.WithoutCancel(ctx), res); err != nil {
			bootLog.Warn("Failed to record run history", zap.Error(err))
		}
	}

	fmt.Print(renderResult(res))

	if runErr != nil {
		return fmt.Errorf("login verification failed: %w", runErr)
	}
	return nil
}

func recordRun(ctx context.Context, res *flow.Result) error {
	s, err := store.Open(cfg.History.DatabasePath, logs.Get(logging.CategoryStore))
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Record(ctx, res)
}
