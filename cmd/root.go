package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamlet-filter/hamlet/pkg/classifier"
	"github.com/hamlet-filter/hamlet/pkg/config"
	"github.com/hamlet-filter/hamlet/pkg/degenerator"
	"github.com/hamlet-filter/hamlet/pkg/idf"
	"github.com/hamlet-filter/hamlet/pkg/storage"
	"github.com/hamlet-filter/hamlet/pkg/tokenizer"
)

var rootCmd = &cobra.Command{
	Use:   "hamlet",
	Short: "Hamlet - statistical spam filter for short texts",
	Long: `Hamlet tells spam from ham in user-submitted texts: forum posts,
guestbook entries, comments. It learns per-token frequencies and combines
them into one spam probability using Robinson's method.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Hamlet - to spam, or not to spam")
		fmt.Println("Use 'hamlet --help' for usage information")
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(configCmd)
}

// app bundles everything a command needs on top of one storage connection
type app struct {
	cfg        *config.Config
	driver     storage.Driver
	adapter    *storage.Adapter
	classifier *classifier.Classifier
	idf        *idf.Calculator
}

// openApp loads configuration and attaches all components to the configured
// backend. Construction errors are fatal; nothing is partially initialized.
func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	driver, err := storage.NewDriver(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage backend: %w", err)
	}

	// One degenerator instance, shared between the adapter's fallback
	// lookups and the classifier.
	degen := degenerator.New(cfg.Degenerator.Multiword)

	adapter, err := storage.NewAdapter(driver, degen)
	if err != nil {
		driver.Close()
		return nil, err
	}

	lexer := tokenizer.New(cfg.Tokenizer)

	var calc *idf.Calculator
	if cfg.Classifier.UseTFIDF {
		calc = idf.New(driver)
	}

	return &app{
		cfg:        cfg,
		driver:     driver,
		adapter:    adapter,
		classifier: classifier.New(cfg, adapter, lexer, degen, calc),
		idf:        calc,
	}, nil
}

func (a *app) Close() {
	a.driver.Close()
}
