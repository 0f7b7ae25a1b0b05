// Package main implements the scry-progress server: spaced repetition
// scheduling, due queries, question flags and mastery reporting over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/scry-progress/internal/config"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	migrateCmd := flag.String("migrate", "", "run a postgres migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *migrateCmd); err != nil {
		log.Printf("scry-progress: %v", err)
		stop()
		os.Exit(1)
	}
}

// run loads configuration, sets up logging, and either runs a migration
// command or serves until ctx is canceled.
func run(ctx context.Context, configFile, migrateCmd string) error {
	cfg, err := config.LoadWithOptions(config.Options{
		ConfigFile: configFile,
		EnvFiles:   []string{".env"},
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("catalog_source", cfg.Catalog.Source))

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, migrateCmd, l)
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}
