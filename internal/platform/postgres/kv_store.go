package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"

	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/store"
)

const (
	tableName     = "progress_blobs"
	columnKey     = "blob_key"
	columnPayload = "payload"
)

// psql builds statements with PostgreSQL placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// KVStore implements store.AtomicKVStore using a PostgreSQL table.
type KVStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure KVStore implements store.AtomicKVStore interface
var _ store.AtomicKVStore = (*KVStore)(nil)

// NewKVStore creates a KVStore over an open pool. The schema must already be
// migrated. If logger is nil, a default logger will be used.
func NewKVStore(db *sql.DB, l *slog.Logger) *KVStore {
	// Validate inputs
	if db == nil {
		panic("db cannot be nil")
	}
	return &KVStore{
		db:     db,
		logger: logger.Component(l, "postgres_kv_store"),
	}
}

func selectPayload(key string, forUpdate bool) squirrel.SelectBuilder {
	q := psql.Select(columnPayload).From(tableName).Where(squirrel.Eq{columnKey: key})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func upsertPayload(key string, payload []byte) squirrel.InsertBuilder {
	if payload == nil {
		payload = []byte{}
	}
	return psql.Insert(tableName).
		Columns(columnKey, columnPayload, "updated_at").
		Values(key, payload, squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (" + columnKey + ") DO UPDATE SET " +
			columnPayload + " = EXCLUDED." + columnPayload + ", updated_at = EXCLUDED.updated_at")
}

// Get implements store.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.db, key, false)
}

func (s *KVStore) get(ctx context.Context, db store.DBTX, key string, forUpdate bool) ([]byte, error) {
	query, args, err := selectPayload(key, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var payload []byte
	if err := db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, MapError(err)
	}
	return payload, nil
}

// Set implements store.KVStore.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, s.db, key, value)
}

func (s *KVStore) set(ctx context.Context, db store.DBTX, key string, value []byte) error {
	query, args, err := upsertPayload(key, value).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return MapError(err)
	}
	return nil
}

// Delete implements store.KVStore.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	query, args, err := psql.Delete(tableName).Where(squirrel.Eq{columnKey: key}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return MapError(err)
	}
	return nil
}

// Update implements store.AtomicKVStore. The row is locked with SELECT ...
// FOR UPDATE for the duration of fn, so writers on other nodes wait. An
// absent row is first created empty so that concurrent first writes also
// serialize on the row lock; an empty payload is reported as not found.
func (s *KVStore) Update(ctx context.Context, key string, fn store.UpdateFn) error {
	ctx = logger.WithLogger(ctx, logger.FromContextOrDefault(ctx, s.logger))

	return store.RunInTransaction(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		query, args, err := psql.Insert(tableName).
			Columns(columnKey, columnPayload).
			Values(key, []byte{}).
			Suffix("ON CONFLICT (" + columnKey + ") DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return MapError(err)
		}

		current, err := s.get(ctx, tx, key, true)
		if err != nil {
			return err
		}

		next, err := fn(current, len(current) > 0)
		if err != nil {
			return err
		}
		return s.set(ctx, tx, key, next)
	})
}
