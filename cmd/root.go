// Package cmd defines and implements the CLI commands for the pricecrawler
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerkotik/pricecrawler/internal/config"
	"github.com/enerkotik/pricecrawler/internal/logging"
)

var (
	cfgFile string

	cfg    config.Config
	logger *zap.Logger
)

// newRootCmd creates and configures the root command. Configuration and the
// logger are built once here and shared by the subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricecrawler",
		Short: "Daily price crawler for retail category pages.",
		Long: `pricecrawler fetches category-listing pages of configured retail
sites, extracts product name/price pairs via per-site selectors and records
one price snapshot per shop/product/day in the history store.`,

		SilenceUsage: true,

		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},

		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the config file")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newInitDBCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
