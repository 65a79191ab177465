package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/aura/internal/config"
	"github.com/MrWong99/aura/pkg/kv"
	"github.com/MrWong99/aura/pkg/kv/memkv"
	"github.com/MrWong99/aura/pkg/speech"
)

func TestRegistry_CreateStore(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	var gotPath string
	reg.RegisterStore(config.StorageSQLite, func(_ context.Context, sc config.StorageConfig) (kv.Store, error) {
		gotPath = sc.Path
		return memkv.New(), nil
	})

	s, err := reg.CreateStore(context.Background(), config.StorageConfig{Driver: config.StorageSQLite, Path: "x.db"})
	if err != nil || s == nil {
		t.Fatalf("want a store, got %v, %v", s, err)
	}
	if gotPath != "x.db" {
		t.Errorf("want the storage config passed through, got path %q", gotPath)
	}

	_, err = reg.CreateStore(context.Background(), config.StorageConfig{Driver: config.StoragePostgres})
	if !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("want ErrNotRegistered, got %v", err)
	}
}

func TestRegistry_CreateEngine(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterEngine(config.SpeechNone, func(context.Context, config.SpeechConfig) (speech.Engine, error) {
		return speech.Unsupported{}, nil
	})
	reg.RegisterEngine(config.SpeechElevenLabs, func(context.Context, config.SpeechConfig) (speech.Engine, error) {
		return nil, boom
	})

	eng, err := reg.CreateEngine(context.Background(), config.SpeechConfig{Engine: config.SpeechNone})
	if err != nil || eng.Supported() {
		t.Fatalf("want the unsupported engine, got %v, %v", eng, err)
	}
	if _, err := reg.CreateEngine(context.Background(), config.SpeechConfig{Engine: config.SpeechElevenLabs}); !errors.Is(err, boom) {
		t.Errorf("want the factory error, got %v", err)
	}

	// Re-registering replaces the factory.
	reg.RegisterEngine(config.SpeechElevenLabs, func(context.Context, config.SpeechConfig) (speech.Engine, error) {
		return speech.Unsupported{}, nil
	})
	if _, err := reg.CreateEngine(context.Background(), config.SpeechConfig{Engine: config.SpeechElevenLabs}); err != nil {
		t.Errorf("want the replacement factory, got %v", err)
	}
	if _, err := reg.CreateEngine(context.Background(), config.SpeechConfig{Engine: "festival"}); !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("want ErrNotRegistered, got %v", err)
	}
}
