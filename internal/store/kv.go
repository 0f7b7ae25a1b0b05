package store

import (
	"context"
	"strings"
)

// KVStore is the byte-blob boundary behind progress persistence.
// Implementations must be safe for concurrent use.
type KVStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// UpdateFn receives the current value of a key (found is false when absent)
// and returns the value to store. Returning an error aborts the update and
// leaves the stored value unchanged.
type UpdateFn func(current []byte, found bool) ([]byte, error)

// AtomicKVStore is implemented by backings that can perform a
// read-modify-write of a single key atomically with respect to other
// processes sharing the same storage.
type AtomicKVStore interface {
	KVStore

	// Update runs fn against the current value of key and stores its result
	// without any other writer interleaving.
	Update(ctx context.Context, key string, fn UpdateFn) error
}

// KeyPrefixProgress is the namespace for progress blobs.
const KeyPrefixProgress = "progress"

// JoinKey builds a colon-separated key from its parts.
func JoinKey(parts ...string) string {
	return strings.Join(parts, ":")
}
