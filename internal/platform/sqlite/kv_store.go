// Package sqlite provides a store.AtomicKVStore on a local SQLite file,
// for single-node deployments that want durability without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress_blobs (
	blob_key   TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const (
	selectPayload = `SELECT payload FROM progress_blobs WHERE blob_key = ?`
	upsertBlob    = `
INSERT INTO progress_blobs (blob_key, payload, updated_at)
VALUES (:blob_key, :payload, :updated_at)
ON CONFLICT (blob_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	deleteBlob = `DELETE FROM progress_blobs WHERE blob_key = ?`
)

type blobRow struct {
	Key       string    `db:"blob_key"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// KVStore keeps blobs in the progress_blobs table.
type KVStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ store.AtomicKVStore = (*KVStore)(nil)

// Open connects to the database file at path and creates the schema.
// SQLite allows a single writer, so the pool is limited to one connection.
func Open(ctx context.Context, path string, l *slog.Logger) (*KVStore, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create progress_blobs table: %w", err)
	}

	return &KVStore{
		db:     db,
		logger: logger.Component(l, "sqlite_kv_store"),
	}, nil
}

// Close closes the underlying database.
func (s *KVStore) Close() error {
	return s.db.Close()
}

// Get implements store.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, selectPayload, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return payload, nil
}

// Set implements store.KVStore.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	row := blobRow{Key: key, Payload: nonNil(value), UpdatedAt: time.Now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, upsertBlob, row); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// Delete implements store.KVStore.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteBlob, key); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Update implements store.AtomicKVStore inside a transaction.
func (s *KVStore) Update(ctx context.Context, key string, fn store.UpdateFn) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrTransactionFailed, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error("failed to roll back transaction", slog.String("error", err.Error()))
		}
	}()

	var current []byte
	found := true
	if err := tx.GetContext(ctx, &current, selectPayload, key); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read blob: %w", err)
		}
		found = false
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}

	row := blobRow{Key: key, Payload: nonNil(next), UpdatedAt: time.Now().UTC()}
	if _, err := tx.NamedExecContext(ctx, upsertBlob, row); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrTransactionFailed, err)
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
