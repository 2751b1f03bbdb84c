package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xhad/quotes/pkg/client"
	"github.com/xhad/quotes/pkg/config"
	"github.com/xhad/quotes/pkg/state"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Process insurance quotes and compare carriers for group benefits clients",
	Long: `quotes turns carrier quote PDFs into structured benefits data.

Documents are processed one at a time through text extraction, AI parsing and
normalization. The results feed a side-by-side comparison, the client
questionnaire and shareable reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			return fmt.Errorf("invalid configuration: %w", errs)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(questionnaireCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func openState() *state.Store {
	return state.Open(cfg.State.Path)
}

func newClient() (*client.Client, error) {
	return client.NewWithConfig(client.ClientConfig{
		BaseURL: cfg.API.URL,
		UserID:  cfg.API.UserID,
		Logger:  logger,
	})
}
