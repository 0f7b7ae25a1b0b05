package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
)

// ProgressUpdateFn computes the next progress of an item from its current
// progress. It must not retain or mutate current. Returning an error aborts
// the update.
type ProgressUpdateFn func(current *domain.ItemProgress) (*domain.ItemProgress, error)

// ProgressStore defines the interface for per-item review state of one
// learner in one pool.
type ProgressStore interface {
	// Get retrieves the progress of one item.
	// Returns ErrProgressNotFound if the item has never been initialized.
	Get(ctx context.Context, itemID string) (*domain.ItemProgress, error)

	// GetOrInitialize returns the existing progress, or creates, persists and
	// returns default progress due at now.
	GetOrInitialize(ctx context.Context, itemID string, now time.Time) (*domain.ItemProgress, error)

	// Set overwrites the progress of one item. Last writer wins.
	Set(ctx context.Context, itemID string, progress *domain.ItemProgress) error

	// Update atomically reads (initializing at now when absent), applies fn,
	// and persists the result, which is also returned.
	Update(ctx context.Context, itemID string, now time.Time, fn ProgressUpdateFn) (*domain.ItemProgress, error)

	// GetAll returns a point-in-time snapshot of every item. The returned
	// values are copies; later writes never show through them.
	GetAll(ctx context.Context) (map[string]*domain.ItemProgress, error)

	// Clear deletes all progress in the pool.
	Clear(ctx context.Context) error

	// ToggleFlag atomically flips the flagged marker of an item, initializing
	// the item at now when absent, and returns the new value.
	ToggleFlag(ctx context.Context, itemID string, now time.Time) (bool, error)

	// IsFlagged reports whether the item is flagged. Unknown items are not.
	IsFlagged(ctx context.Context, itemID string) (bool, error)

	// FlaggedItems lists flagged item IDs in ascending order.
	FlaggedItems(ctx context.Context) ([]string, error)
}

// ProgressKey is the key under which a learner's pool blob is stored,
// for example "progress:<learnerID>:flashcards".
func ProgressKey(learnerID uuid.UUID, pool domain.Pool) string {
	return JoinKey(KeyPrefixProgress, learnerID.String(), string(pool))
}

// ProgressStoreProvider hands out the ProgressStore of a learner's pool.
type ProgressStoreProvider interface {
	// ProgressStore returns domain.ErrInvalidPool for an unknown pool and
	// domain.ErrValidation for a nil learner ID.
	ProgressStore(learnerID uuid.UUID, pool domain.Pool) (ProgressStore, error)
}
