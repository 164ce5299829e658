package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	resetConfig string
	resetYes    bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all trained data",
	Long: `Delete every token row, the global counters and all TF-IDF bookkeeping
from the configured backend, then re-initialize an empty store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to wipe trained data without --yes")
		}

		a, err := openApp(resetConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.driver.DeletePrefix(""); err != nil {
			return fmt.Errorf("failed to wipe store: %w", err)
		}
		if err := a.driver.Initialize(); err != nil {
			return fmt.Errorf("failed to re-initialize store: %w", err)
		}
		if a.idf != nil {
			if err := a.idf.Reset(); err != nil {
				return err
			}
		}

		fmt.Printf("🔄 Token store wiped and re-initialized\n")
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVarP(&resetConfig, "config", "c", "", "Config file path")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm wiping all trained data")
}
