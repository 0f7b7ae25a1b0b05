// Package progress implements store.ProgressStore on top of a store.KVStore.
//
// Each learner has one blob per pool: a JSON object mapping item IDs to
// their domain.ItemProgress. A Registry hands out Stores bound to a learner
// and pool and serializes every read-modify-write of a blob behind a lock
// keyed by the blob's storage key.
package progress
