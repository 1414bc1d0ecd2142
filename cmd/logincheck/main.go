package main

import (
	"fmt"
	"os"

	"logincheck/internal/config"
	"logincheck/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Resolved by PersistentPreRunE
	cfg  *config.Config
	logs *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "logincheck",
	Short: "Verify that a web login works end to end in a real browser",
	Long: `logincheck drives Chrome through a site's login form and asserts that the
post-login page rendered. Every run starts a fresh browser and always shuts it
down, whatever the outcome.

Run without flags it checks the saucedemo demo store with its standard user.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logs = l
		logs.Get(logging.CategoryBoot).Debug("Configuration loaded",
			zap.String("path", configPath),
			zap.String("target", cfg.Target.URL))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")

	rootCmd.AddCommand(runCmd, historyCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
