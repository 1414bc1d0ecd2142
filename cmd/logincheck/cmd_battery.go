package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"logincheck/internal/flow"
	"logincheck/internal/logging"
	"logincheck/internal/regression"
	"logincheck/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// batteryCmd runs a YAML battery of login scenarios
var batteryCmd = &cobra.Command{
	Use:   "battery [file]",
	Short: "Run a battery of login scenarios with expected outcomes",
	Long: `Runs each scenario in the battery file as its own login verification and
compares the outcome with the expectation ("pass" or a failure kind such as
navigation_timeout). Scenario fields left empty inherit from the config.

Example battery:

  version: 1
  tasks:
    - id: standard
      expect: pass
    - id: locked-out
      username: locked_out_user
      expect: navigation_timeout`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatteryCmd,
}

func init() {
	batteryCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record runs in the history database")
	rootCmd.AddCommand(batteryCmd)
}

func runBatteryCmd(cmd *cobra.Command, args []string) error {
	path := regression.DefaultBatteryPath
	if len(args) == 1 {
		path = args[0]
	}
	b, err := regression.LoadBattery(path)
	if err != nil {
		return fmt.Errorf("failed to load battery %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog := logs.Get(logging.CategoryBoot)
	bootLog.Info("Running battery", zap.String("path", path), zap.Int("tasks", len(b.Tasks)))

	provider := newProvider(cfg.BrowserConfig(), logs.Get(logging.CategoryBrowser))
	opts := []flow.Option{flow.WithLogger(logs.Get(logging.CategoryFlow))}
	if cfg.Browser.ArtifactsDir != "" {
		opts = append(opts, flow.WithArtifactsDir(cfg.Browser.ArtifactsDir))
	}

	results, runErr := regression.RunBattery(ctx, b, cfg.FlowConfig(), provider, opts...)

	if !runNoHistory && cfg.History.DatabasePath != "" {
		if err := recordBattery(context.WithoutCancel(ctx), results); err != nil {
			bootLog.Warn("Failed to record run history", zap.Error(err))
		}
	}

	fmt.Print(renderBattery(results))

	if runErr != nil {
		return runErr
	}
	if n := regression.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d scenario(s) did not match their expectation", n, len(results))
	}
	return nil
}

func recordBattery(ctx context.Context, results []regression.Result) error {
	s, err := store.Open(cfg.History.DatabasePath, logs.Get(logging.CategoryStore))
	if err != nil {
		return err
	}
	defer s.Close()
	for _, r := range results {
		if r.Run == nil {
			continue
		}
		if err := s.Record(ctx, r.Run); err != nil {
			return err
		}
	}
	return nil
}
