package main

import (
	"fmt"
	"os"

	"logincheck/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the logincheck config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default config file",
	Long: `Writes the built-in defaults (the saucedemo scenario) as YAML. The path
defaults to the --config value. An existing file is kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: initConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file + environment)",
	Args:  cobra.NoArgs,
	RunE:  showConfig,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = config.DefaultPath
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		fmt.Printf("Config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.Credentials.Password != "" {
		shown.Credentials.Password = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
