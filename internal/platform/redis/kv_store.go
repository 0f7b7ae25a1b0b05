// Package redis provides a store.AtomicKVStore backed by a Redis server.
// Blobs are plain string values; atomic updates use optimistic WATCH/MULTI
// transactions and retry when another client wins the race.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/store"
)

// maxUpdateAttempts bounds the optimistic retry loop in Update.
const maxUpdateAttempts = 16

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// KVStore keeps progress blobs as Redis string values.
type KVStore struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

var _ store.AtomicKVStore = (*KVStore)(nil)

// Connect opens a client and verifies the server answers PING.
func Connect(ctx context.Context, opts Options, l *slog.Logger) (*KVStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}
	return NewKVStore(client, l), nil
}

// NewKVStore wraps an existing client.
func NewKVStore(client goredis.UniversalClient, l *slog.Logger) *KVStore {
	return &KVStore{
		client: client,
		logger: logger.Component(l, "redis_kv_store"),
	}
}

// Close closes the underlying client.
func (s *KVStore) Close() error {
	return s.client.Close()
}

// Get implements store.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return payload, nil
}

// Set implements store.KVStore. Blobs never expire.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// Delete implements store.KVStore.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Update implements store.AtomicKVStore. fn may run more than once when
// another client modifies key concurrently, so it must not have side effects
// beyond computing the new value.
func (s *KVStore) Update(ctx context.Context, key string, fn store.UpdateFn) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		found := true
		if errors.Is(err, goredis.Nil) {
			found = false
			current = nil
		} else if err != nil {
			return fmt.Errorf("failed to read blob: %w", err)
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
		log.Debug("optimistic update lost a race, retrying",
			slog.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: %d attempts on contended key", store.ErrTransactionFailed, maxUpdateAttempts)
}
