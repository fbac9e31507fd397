package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/spec-kit/agency-hub/internal/config"
	"github.com/spec-kit/agency-hub/internal/observability"
	"github.com/spec-kit/agency-hub/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations to POSTGRES_DSN",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required")
		}
		return persistence.RunMigrations(cfg.Postgres.DSN, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
}
