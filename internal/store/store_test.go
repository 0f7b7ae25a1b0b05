package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "ErrNotFound", err: store.ErrNotFound, expected: true},
		{name: "wrapped ErrNotFound", err: fmt.Errorf("get: %w", store.ErrNotFound), expected: true},
		{name: "ErrProgressNotFound", err: store.ErrProgressNotFound, expected: true},
		{
			name:     "StoreError wrapping not found",
			err:      store.NewStoreError("blob", "get", "lookup failed", store.ErrNotFound),
			expected: true,
		},
		{name: "ErrInvalidEntity", err: store.ErrInvalidEntity, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, store.IsNotFoundError(tc.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := store.NewStoreError("blob", "set", "write failed", cause)

	assert.Equal(t, "set operation on blob failed: write failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var storeErr *store.StoreError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &storeErr))
	assert.Equal(t, "blob", storeErr.Entity)

	bare := store.NewStoreError("progress", "decode", "bad blob", nil)
	assert.Equal(t, "decode operation on progress failed: bad blob", bare.Error())
}

func TestProgressKey(t *testing.T) {
	t.Parallel()

	learner := uuid.MustParse("7b1c2f7e-4c64-4a45-9b0b-3c7f5e0e2a11")
	assert.Equal(t,
		"progress:7b1c2f7e-4c64-4a45-9b0b-3c7f5e0e2a11:flashcards",
		store.ProgressKey(learner, domain.PoolFlashcards))
	assert.Equal(t,
		"progress:7b1c2f7e-4c64-4a45-9b0b-3c7f5e0e2a11:questions",
		store.ProgressKey(learner, domain.PoolQuestions))
}
