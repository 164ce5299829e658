package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	classifyConfig string
	classifyText   string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Score a text's spam probability",
	Long: `Classify one text against the trained token store and print its spam
probability. The verdict line uses the configured spam_threshold.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		texts, sources, err := collectTexts(args, classifyText)
		if err != nil {
			return err
		}

		a, err := openApp(classifyConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		probability, err := a.classifier.Classify(texts[0])
		if err != nil {
			return fmt.Errorf("failed to classify %s: %w", sources[0], err)
		}

		verdict := "✅ HAM"
		if probability >= a.cfg.Classifier.SpamThreshold {
			verdict = "🚫 SPAM"
		}

		fmt.Printf("📊 Spam probability: %.4f\n", probability)
		fmt.Printf("📏 Threshold:        %.2f\n", a.cfg.Classifier.SpamThreshold)
		fmt.Printf("%s\n", verdict)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyConfig, "config", "c", "", "Config file path")
	classifyCmd.Flags().StringVarP(&classifyText, "text", "t", "", "Classify this text instead of reading a file")
}
