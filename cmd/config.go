package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hamlet-filter/hamlet/pkg/config"
)

var configPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s", configPath)
		}

		if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote default config to %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if _, err := os.Stat(path); err != nil {
			path = ""
		}

		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVarP(&configPath, "path", "p", "hamlet.yaml", "Config file path")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
