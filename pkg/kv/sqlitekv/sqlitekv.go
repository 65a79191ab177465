// Package sqlitekv provides a [kv.Store] persisted to a single SQLite file.
//
// It uses the pure-Go modernc.org/sqlite driver so the aura binary stays
// cgo-free. The schema is one table created on open:
//
//	CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at ...)
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/aura/pkg/kv"
)

var _ kv.Store = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);`

// Store is a SQLite-backed key-value store. All methods are safe for
// concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the kv table exists. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open %q: %w", path, err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitekv: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get implements [kv.Store].
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlitekv: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements [kv.Store].
func (s *Store) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("sqlitekv: set %q: %w", key, err)
	}
	return nil
}

// Delete implements [kv.Store].
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, k); err != nil {
			return fmt.Errorf("sqlitekv: delete %q: %w", k, err)
		}
	}
	return nil
}

// Ping implements [kv.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlitekv: ping: %w", err)
	}
	return nil
}

// Close implements [kv.Store].
func (s *Store) Close() error { return s.db.Close() }
