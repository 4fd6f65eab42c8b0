package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/config"
	"github.com/axgtan77/anson-catalog-automation/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the catalog database schema to the latest version.

Other commands migrate automatically; this exists for provisioning a new
machine or verifying the schema before a cron rollout.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.Info("Running database migrations", "database", cfg.Database.Path)

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Database migrations completed", "schema_version", storage.ExpectedSchemaVersion)
	return nil
}
