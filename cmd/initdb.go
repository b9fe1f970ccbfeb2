package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enerkotik/pricecrawler/internal/store/postgres"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the price history schema if it does not exist",

		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := postgres.New(ctx, postgres.Config{
				DSN:             cfg.DB.DSN,
				MaxConns:        cfg.DB.MaxConns,
				MinConns:        cfg.DB.MinConns,
				MaxConnLifetime: cfg.DB.MaxConnLifetime(),
			})
			if err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			defer store.Close()

			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			logger.Info("schema ready")
			return nil
		},
	}
}
