package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamlet-filter/hamlet/pkg/storage"
)

var (
	trainConfig   string
	trainCategory string
	trainText     string
	trainUnlearn  bool
)

var trainCmd = &cobra.Command{
	Use:   "train [file...]",
	Short: "Learn texts as ham or spam",
	Long: `Feed texts into the token store. Each file argument is learned as one
text; with no files and no --text, one text is read from stdin.

Use --unlearn to take a previously learned text back out, for example after
a misclassification was corrected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category := storage.Category(trainCategory)
		if category != storage.CategoryHam && category != storage.CategorySpam {
			return fmt.Errorf("--category must be %q or %q", storage.CategoryHam, storage.CategorySpam)
		}

		texts, sources, err := collectTexts(args, trainText)
		if err != nil {
			return err
		}

		a, err := openApp(trainConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		verb := "Learned"
		if trainUnlearn {
			verb = "Unlearned"
		}

		start := time.Now()
		for i, text := range texts {
			if trainUnlearn {
				err = a.classifier.Unlearn(text, category)
			} else {
				err = a.classifier.Learn(text, category)
			}
			if err != nil {
				return fmt.Errorf("failed to train %s: %w", sources[i], err)
			}
			fmt.Printf("✅ %s %s as %s\n", verb, sources[i], category)
		}

		fmt.Printf("\n🎉 %s %d text(s) in %v\n", verb, len(texts), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// collectTexts gathers training input from --text, file arguments or stdin
func collectTexts(args []string, inline string) ([]string, []string, error) {
	if inline != "" {
		return []string{inline}, []string{"text"}, nil
	}

	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []string{string(data)}, []string{"stdin"}, nil
	}

	texts := make([]string, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		texts = append(texts, string(data))
	}
	return texts, args, nil
}

func init() {
	trainCmd.Flags().StringVarP(&trainConfig, "config", "c", "", "Config file path")
	trainCmd.Flags().StringVar(&trainCategory, "category", "", "Category to train: ham or spam")
	trainCmd.Flags().StringVarP(&trainText, "text", "t", "", "Train this text instead of reading files")
	trainCmd.Flags().BoolVar(&trainUnlearn, "unlearn", false, "Remove the text's counts instead of adding them")
	trainCmd.MarkFlagRequired("category")
}
