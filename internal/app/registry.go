package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/MrWong99/aura/internal/config"
	"github.com/MrWong99/aura/pkg/kv"
	"github.com/MrWong99/aura/pkg/kv/memkv"
	"github.com/MrWong99/aura/pkg/kv/postgres"
	"github.com/MrWong99/aura/pkg/kv/sqlitekv"
	"github.com/MrWong99/aura/pkg/speech"
	"github.com/MrWong99/aura/pkg/speech/elevenlabs"
)

// DefaultRegistry returns a registry with every built-in storage driver and
// speech engine.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterStore(config.StorageMemory, func(context.Context, config.StorageConfig) (kv.Store, error) {
		return memkv.New(), nil
	})
	reg.RegisterStore(config.StorageSQLite, func(ctx context.Context, sc config.StorageConfig) (kv.Store, error) {
		return sqlitekv.Open(ctx, sc.Path)
	})
	reg.RegisterStore(config.StoragePostgres, func(ctx context.Context, sc config.StorageConfig) (kv.Store, error) {
		return postgres.NewStore(ctx, sc.PostgresDSN, sc.Namespace)
	})

	reg.RegisterEngine(config.SpeechNone, func(context.Context, config.SpeechConfig) (speech.Engine, error) {
		return speech.Unsupported{}, nil
	})
	reg.RegisterEngine(config.SpeechElevenLabs, newElevenLabs)
	return reg
}

// sinkEngine closes its PCM output file after the engine.
type sinkEngine struct {
	*elevenlabs.Engine
	sink *os.File
}

func (e sinkEngine) Close() error {
	return errors.Join(e.Engine.Close(), e.sink.Close())
}

func newElevenLabs(_ context.Context, sp config.SpeechConfig) (speech.Engine, error) {
	opts := []elevenlabs.Option{elevenlabs.WithDefaultVoice(sp.VoiceID)}
	if sp.Model != "" {
		opts = append(opts, elevenlabs.WithModel(sp.Model))
	}
	if sp.Output == "" {
		return elevenlabs.New(sp.APIKey, opts...)
	}

	f, err := os.OpenFile(sp.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open speech output: %w", err)
	}
	eng, err := elevenlabs.New(sp.APIKey, append(opts, elevenlabs.WithSink(f))...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return sinkEngine{Engine: eng, sink: f}, nil
}
