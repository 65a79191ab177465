package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/aura/pkg/kv"
	"github.com/MrWong99/aura/pkg/speech"
)

// ErrNotRegistered is returned by the Create methods when no factory has
// been registered under the configured name.
var ErrNotRegistered = errors.New("config: factory not registered")

// StoreFactory opens the key-value store described by sc.
type StoreFactory func(ctx context.Context, sc StorageConfig) (kv.Store, error)

// EngineFactory builds the speech engine described by sp.
type EngineFactory func(ctx context.Context, sp SpeechConfig) (speech.Engine, error)

// Registry maps storage drivers and speech engine names to their
// constructors. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stores  map[StorageDriver]StoreFactory
	engines map[SpeechEngine]EngineFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stores:  make(map[StorageDriver]StoreFactory),
		engines: make(map[SpeechEngine]EngineFactory),
	}
}

// RegisterStore registers a store factory under driver. A later call with
// the same driver replaces the earlier factory.
func (r *Registry) RegisterStore(driver StorageDriver, f StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[driver] = f
}

// RegisterEngine registers a speech engine factory under name.
func (r *Registry) RegisterEngine(name SpeechEngine, f EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = f
}

// CreateStore opens the store registered under sc.Driver.
// Returns [ErrNotRegistered] if there is none.
func (r *Registry) CreateStore(ctx context.Context, sc StorageConfig) (kv.Store, error) {
	r.mu.RLock()
	f, ok := r.stores[sc.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: storage/%q", ErrNotRegistered, sc.Driver)
	}
	return f(ctx, sc)
}

// CreateEngine builds the engine registered under sp.Engine.
func (r *Registry) CreateEngine(ctx context.Context, sp SpeechConfig) (speech.Engine, error) {
	r.mu.RLock()
	f, ok := r.engines[sp.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrNotRegistered, sp.Engine)
	}
	return f(ctx, sp)
}
