// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing scheduling rules to remain
// independent of specific database technologies or persistence details.
//
// Two layers live here: KVStore is the narrow byte-blob boundary that every
// backing (memory, SQLite, PostgreSQL, Redis) implements, and ProgressStore
// is the typed per-learner per-pool view built on top of it.
package store
