// Package kv defines the key-value storage capability that backs the
// persisted session and transcript.
//
// A [Store] holds opaque string values under string keys. It carries no
// domain logic: serialisation and key naming belong to the caller. Three
// implementations ship with aura:
//
//   - [github.com/MrWong99/aura/pkg/kv/memkv]: process-local map, for tests
//     and ephemeral runs.
//   - [github.com/MrWong99/aura/pkg/kv/sqlitekv]: single-file SQLite, the
//     default for a local terminal client.
//   - [github.com/MrWong99/aura/pkg/kv/postgres]: a shared PostgreSQL table.
//
// All implementations must be safe for concurrent use.
package kv

import "context"

// Store is a flat string key-value store.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; err is reserved for storage failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
