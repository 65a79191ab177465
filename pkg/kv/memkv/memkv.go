// Package memkv provides an in-memory [kv.Store].
package memkv

import (
	"context"
	"maps"
	"sync"

	"github.com/MrWong99/aura/pkg/kv"
)

var _ kv.Store = (*Store)(nil)

// Store is a map guarded by a mutex. The zero value is ready to use.
type Store struct {
	mu   sync.Mutex
	data map[string]string
}

// New returns an empty Store.
func New() *Store { return &Store{} }

// Get implements [kv.Store].
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements [kv.Store].
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]string)
	}
	s.data[key] = value
	return nil
}

// Delete implements [kv.Store].
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Ping implements [kv.Store]. It always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements [kv.Store]. The data is kept so a closed store can still
// be inspected by tests.
func (s *Store) Close() error { return nil }

// Snapshot returns a copy of every stored pair.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.data)
}
