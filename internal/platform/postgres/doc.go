// Package postgres provides the PostgreSQL implementation of store.KVStore
// together with the connection setup and embedded schema migrations it needs.
// Progress blobs live in a single table keyed by their storage key.
package postgres
