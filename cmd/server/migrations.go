package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-progress/internal/config"
	"github.com/phrazzld/scry-progress/internal/platform/postgres"
)

// runMigrations executes a goose command against the configured postgres
// database. Other backends create their schema on open and have nothing to
// migrate.
func runMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Storage.Backend != config.BackendPostgres {
		return fmt.Errorf("migrations require the %q storage backend, configured %q",
			config.BackendPostgres, cfg.Storage.Backend)
	}

	db, err := openPostgres(ctx, cfg.Storage.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()

	if err := postgres.Migrate(ctx, db, command, logger); err != nil {
		return fmt.Errorf("migration %q failed: %w", command, err)
	}
	logger.Info("migration finished", slog.String("command", command))
	return nil
}
