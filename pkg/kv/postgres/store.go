// Package postgres provides a PostgreSQL-backed [kv.Store].
//
// Values live in a single kv_entries table keyed by namespace and key, so
// several aura clients can share one database without colliding. [Migrate]
// creates the table on first use.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, "alice")
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/aura/pkg/kv"
)

var _ kv.Store = (*Store)(nil)

const ddlEntries = `
CREATE TABLE IF NOT EXISTS kv_entries (
    namespace   TEXT         NOT NULL,
    key         TEXT         NOT NULL,
    value       TEXT         NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, key)
);`

// Migrate creates the kv_entries table if it does not already exist. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlEntries); err != nil {
		return fmt.Errorf("migrate kv_entries: %w", err)
	}
	return nil
}

// Store is a key-value store over a [pgxpool.Pool]. All operations are safe
// for concurrent use.
type Store struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewStore creates a connection pool to the database at dsn, verifies it with
// a ping, and runs [Migrate]. Keys are scoped to namespace.
func NewStore(ctx context.Context, dsn, namespace string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres kv: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres kv: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres kv: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres kv: %w", err)
	}

	return &Store{pool: pool, namespace: namespace}, nil
}

// Get implements [kv.Store].
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`

	var v string
	err := s.pool.QueryRow(ctx, q, s.namespace, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres kv: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements [kv.Store].
func (s *Store) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, s.namespace, key, value); err != nil {
		return fmt.Errorf("postgres kv: set %q: %w", key, err)
	}
	return nil
}

// Delete implements [kv.Store]. All keys are removed in one statement.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `DELETE FROM kv_entries WHERE namespace = $1 AND key = ANY($2)`

	if _, err := s.pool.Exec(ctx, q, s.namespace, keys); err != nil {
		return fmt.Errorf("postgres kv: delete: %w", err)
	}
	return nil
}

// Ping implements [kv.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [kv.Store]. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
