package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/redact"
	"github.com/phrazzld/scry-progress/internal/store"
)

const entityName = "progress"

// Store is the progress of one learner in one pool.
type Store struct {
	registry  *Registry
	learnerID uuid.UUID
	pool      domain.Pool
	key       string
	logger    *slog.Logger
}

var _ store.ProgressStore = (*Store)(nil)

// LearnerID returns the learner the store is scoped to.
func (s *Store) LearnerID() uuid.UUID {
	return s.learnerID
}

// Pool returns the pool the store is scoped to.
func (s *Store) Pool() domain.Pool {
	return s.pool
}

// Get implements store.ProgressStore.
func (s *Store) Get(ctx context.Context, itemID string) (*domain.ItemProgress, error) {
	if itemID == "" {
		return nil, domain.ErrEmptyItemID
	}
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := items[itemID]
	if !ok {
		return nil, store.ErrProgressNotFound
	}
	return p, nil
}

// GetOrInitialize implements store.ProgressStore.
func (s *Store) GetOrInitialize(
	ctx context.Context,
	itemID string,
	now time.Time,
) (*domain.ItemProgress, error) {
	if itemID == "" {
		return nil, domain.ErrEmptyItemID
	}

	var result *domain.ItemProgress
	err := s.modify(ctx, "initialize", func(items map[string]*domain.ItemProgress) (bool, error) {
		if p, ok := items[itemID]; ok {
			result = p.Clone()
			return false, nil
		}
		p := domain.NewItemProgress(itemID, now)
		items[itemID] = p
		result = p.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Set implements store.ProgressStore.
func (s *Store) Set(ctx context.Context, itemID string, progress *domain.ItemProgress) error {
	if itemID == "" {
		return domain.ErrEmptyItemID
	}
	if progress == nil {
		return fmt.Errorf("%w: progress cannot be nil", store.ErrInvalidEntity)
	}

	p := progress.Clone()
	p.ItemID = itemID
	return s.modify(ctx, "set", func(items map[string]*domain.ItemProgress) (bool, error) {
		items[itemID] = p
		return true, nil
	})
}

// Update implements store.ProgressStore.
func (s *Store) Update(
	ctx context.Context,
	itemID string,
	now time.Time,
	fn store.ProgressUpdateFn,
) (*domain.ItemProgress, error) {
	if itemID == "" {
		return nil, domain.ErrEmptyItemID
	}

	var result *domain.ItemProgress
	err := s.modify(ctx, "update", func(items map[string]*domain.ItemProgress) (bool, error) {
		current, ok := items[itemID]
		if !ok {
			current = domain.NewItemProgress(itemID, now)
		}

		next, err := fn(current.Clone())
		if err != nil {
			return false, err
		}
		if next == nil {
			return false, fmt.Errorf("%w: update produced nil progress", store.ErrInvalidEntity)
		}

		next = next.Clone()
		next.ItemID = itemID
		items[itemID] = next
		result = next.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetAll implements store.ProgressStore. Every call decodes a fresh copy of
// the blob, so the returned values are never shared.
func (s *Store) GetAll(ctx context.Context) (map[string]*domain.ItemProgress, error) {
	return s.load(ctx)
}

// Clear implements store.ProgressStore.
func (s *Store) Clear(ctx context.Context) error {
	unlock := s.registry.lock(s.key)
	defer unlock()

	if err := s.registry.kv.Delete(ctx, s.key); err != nil {
		return s.ioError(ctx, "clear", "failed to delete progress", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Debug("progress cleared")
	return nil
}

// ToggleFlag implements store.ProgressStore.
func (s *Store) ToggleFlag(ctx context.Context, itemID string, now time.Time) (bool, error) {
	if itemID == "" {
		return false, domain.ErrEmptyItemID
	}

	var flagged bool
	err := s.modify(ctx, "toggle_flag", func(items map[string]*domain.ItemProgress) (bool, error) {
		p, ok := items[itemID]
		if !ok {
			p = domain.NewItemProgress(itemID, now)
			items[itemID] = p
		}
		p.Flagged = !p.Flagged
		flagged = p.Flagged
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return flagged, nil
}

// IsFlagged implements store.ProgressStore.
func (s *Store) IsFlagged(ctx context.Context, itemID string) (bool, error) {
	p, err := s.Get(ctx, itemID)
	if errors.Is(err, store.ErrProgressNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Flagged, nil
}

// FlaggedItems implements store.ProgressStore.
func (s *Store) FlaggedItems(ctx context.Context) ([]string, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	flagged := make([]string, 0)
	for id, p := range items {
		if p.Flagged {
			flagged = append(flagged, id)
		}
	}
	sort.Strings(flagged)
	return flagged, nil
}

// load reads and decodes the blob. An absent blob is an empty pool.
func (s *Store) load(ctx context.Context) (map[string]*domain.ItemProgress, error) {
	blob, err := s.registry.kv.Get(ctx, s.key)
	if errors.Is(err, store.ErrNotFound) {
		return make(map[string]*domain.ItemProgress), nil
	}
	if err != nil {
		return nil, s.ioError(ctx, "get", "failed to read progress", err)
	}
	return s.decode(ctx, blob), nil
}

// modify runs fn against the decoded blob under the blob's lock and writes
// the result back when fn reports a change. Backings that implement
// store.AtomicKVStore also get the cycle made atomic at the storage level.
func (s *Store) modify(
	ctx context.Context,
	operation string,
	fn func(items map[string]*domain.ItemProgress) (bool, error),
) error {
	unlock := s.registry.lock(s.key)
	defer unlock()

	if atomic, ok := s.registry.kv.(store.AtomicKVStore); ok {
		var fnErr error
		err := atomic.Update(ctx, s.key, func(current []byte, found bool) ([]byte, error) {
			items := make(map[string]*domain.ItemProgress)
			if found {
				items = s.decode(ctx, current)
			}
			changed, err := fn(items)
			if err != nil {
				fnErr = err
				return nil, err
			}
			if !changed && found {
				return current, nil
			}
			return encode(items)
		})
		if fnErr != nil {
			return fnErr
		}
		if err != nil {
			return s.ioError(ctx, operation, "failed to update progress", err)
		}
		return nil
	}

	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(items)
	if err != nil || !changed {
		return err
	}
	blob, err := encode(items)
	if err != nil {
		return s.ioError(ctx, operation, "failed to encode progress", err)
	}
	if err := s.registry.kv.Set(ctx, s.key, blob); err != nil {
		return s.ioError(ctx, operation, "failed to write progress", err)
	}
	return nil
}

// decode parses a blob. Anything that does not decode is treated as an
// empty pool and reported as a warning.
func (s *Store) decode(ctx context.Context, blob []byte) map[string]*domain.ItemProgress {
	items := make(map[string]*domain.ItemProgress)
	if len(blob) == 0 {
		return items
	}

	if err := json.Unmarshal(blob, &items); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("discarding undecodable progress blob",
			slog.String("key", s.key),
			slog.Int("size", len(blob)),
			slog.String("error", redact.Error(err)))
		s.registry.metrics.CorruptBlobRecovered(string(s.pool))
		return make(map[string]*domain.ItemProgress)
	}

	for id, p := range items {
		if p == nil || id == "" {
			delete(items, id)
			continue
		}
		p.ItemID = id
	}
	return items
}

func encode(items map[string]*domain.ItemProgress) ([]byte, error) {
	return json.Marshal(items)
}

func (s *Store) ioError(ctx context.Context, operation, message string, err error) error {
	s.registry.metrics.StoreError(operation)
	logger.FromContextOrDefault(ctx, s.logger).Error(message,
		slog.String("operation", operation),
		slog.String("error", redact.Error(err)))
	return store.NewStoreError(entityName, operation, message, err)
}
