package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phrazzld/scry-progress/internal/catalog"
	"github.com/phrazzld/scry-progress/internal/config"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/domain/srs"
	"github.com/phrazzld/scry-progress/internal/metrics"
	"github.com/phrazzld/scry-progress/internal/platform/memory"
	"github.com/phrazzld/scry-progress/internal/platform/mongodb"
	"github.com/phrazzld/scry-progress/internal/platform/postgres"
	"github.com/phrazzld/scry-progress/internal/platform/redis"
	"github.com/phrazzld/scry-progress/internal/platform/sqlite"
	"github.com/phrazzld/scry-progress/internal/progress"
	"github.com/phrazzld/scry-progress/internal/redact"
	"github.com/phrazzld/scry-progress/internal/service/due"
	"github.com/phrazzld/scry-progress/internal/service/mastery"
	"github.com/phrazzld/scry-progress/internal/service/review"
	"github.com/phrazzld/scry-progress/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	kv       store.KVStore
	registry *progress.Registry

	reviewService review.Service
	dueService    *due.Service
	aggregator    *mastery.Aggregator

	// closers release backing connections in reverse order of creation
	closers []io.Closer
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	var err error
	app.kv, err = app.openKVStore(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	app.registry, err = progress.NewRegistry(app.kv,
		progress.WithLogger(logger),
		progress.WithMetrics(app.metrics))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create progress registry: %w", err)
	}

	srsService, err := srs.NewDefaultService()
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create SRS service: %w", err)
	}

	app.reviewService = review.NewService(app.registry, srsService,
		review.WithLogger(logger),
		review.WithMetrics(app.metrics))

	flashcards, questions, err := app.openCatalogs(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.dueService = due.NewService(app.registry, logger,
		due.WithCatalog(domain.PoolFlashcards, flashcards),
		due.WithCatalog(domain.PoolQuestions, questions))
	app.aggregator, err = mastery.NewAggregator(app.registry, flashcards, questions,
		mastery.WithFallbackTotal(cfg.Mastery.FallbackTotal),
		mastery.WithLogger(logger),
		mastery.WithMetrics(app.metrics))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create mastery aggregator: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// openKVStore connects the configured storage backend.
func (app *application) openKVStore(ctx context.Context) (store.KVStore, error) {
	cfg := app.config.Storage

	switch cfg.Backend {
	case config.BackendMemory:
		app.logger.Warn("using in-memory storage, progress is lost on restart")
		return memory.NewKVStore(), nil

	case config.BackendSQLite:
		kv, err := sqlite.Open(ctx, cfg.SQLitePath, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		app.closers = append(app.closers, kv)
		app.logger.Info("sqlite storage opened", slog.String("path", cfg.SQLitePath))
		return kv, nil

	case config.BackendPostgres:
		db, err := openPostgres(ctx, cfg.DatabaseURL, app.logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		if err := postgres.Migrate(ctx, db, "up", app.logger); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		return postgres.NewKVStore(db, app.logger), nil

	case config.BackendRedis:
		kv, err := redis.Connect(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.closers = append(app.closers, kv)
		app.logger.Info("redis storage connected", slog.String("addr", cfg.RedisAddr))
		return kv, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// openCatalogs builds the flashcard and question catalogs.
func (app *application) openCatalogs(ctx context.Context) (catalog.Catalog, catalog.Catalog, error) {
	cfg := app.config.Catalog

	switch cfg.Source {
	case config.CatalogStatic:
		// Files are read lazily; a missing file degrades to fallback totals.
		return catalog.NewFlashcardFile(dirFS(cfg.FlashcardsFile)),
			catalog.NewQuestionFile(dirFS(cfg.QuestionsFile)),
			nil

	case config.CatalogMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo at %s: %w", redact.URL(cfg.MongoURI), err)
		}
		app.closers = append(app.closers, closerFunc(func() error {
			return client.Disconnect(context.Background())
		}))
		db := client.Database(cfg.MongoDatabase)
		app.logger.Info("mongo catalog connected", slog.String("database", cfg.MongoDatabase))
		return mongodb.NewCatalog(db, mongodb.FlashcardsCollection),
			mongodb.NewCatalog(db, mongodb.QuestionsCollection),
			nil

	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

// dirFS splits a file path into a directory filesystem and a file name.
func dirFS(path string) (fs.FS, string) {
	return os.DirFS(filepath.Dir(path)), filepath.Base(path)
}

// openPostgres opens the pool and logs the redacted target.
func openPostgres(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := postgres.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres at %s: %w", redact.URL(url), err)
	}
	logger.Info("database connection established", slog.String("url", redact.URL(url)))
	return db, nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error("error closing resource", slog.String("error", redact.Error(err)))
		}
	}
	app.closers = nil
	app.logger.Info("application shutdown completed")
}
