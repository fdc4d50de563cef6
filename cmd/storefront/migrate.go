package main

import (
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the orders database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			creds := cfg.Orders.Postgres.Credentials()
			repo, err := orders.NewPostgresRepository(cmd.Context(), creds)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(creds); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("dir", creds.MigrationsDirPath))
			return nil
		},
	}
}
