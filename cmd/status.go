package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusConfig string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show token store counters and backend info",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(statusConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		internals, err := a.adapter.Internals()
		if err != nil {
			return fmt.Errorf("failed to read store counters: %w", err)
		}

		fmt.Printf("🧠 Hamlet Token Store\n")
		fmt.Printf("════════════════════════════════════\n")
		fmt.Printf("Backend:        %s\n", a.cfg.Storage.Backend)
		fmt.Printf("Schema version: %d\n", internals.Version)
		fmt.Printf("Ham texts:      %d\n", internals.TextsHam)
		fmt.Printf("Spam texts:     %d\n", internals.TextsSpam)
		fmt.Printf("TF-IDF:         %v\n", a.cfg.Classifier.UseTFIDF)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusConfig, "config", "c", "", "Config file path")
}
