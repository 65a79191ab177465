package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MrWong99/aura/internal/config"
)

const watcherValidYAML = `
log_level: info
speech:
  preferred_voices: [Samantha]
`

const watcherUpdatedYAML = `
log_level: debug
speech:
  preferred_voices: [Microsoft David]
`

const watcherInvalidYAML = `
log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "aura.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.LogLevel, config.LogInfo)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "aura.yaml")
	writeFile(t, cfgPath, watcherInvalidYAML)

	if _, err := config.NewWatcher(cfgPath, nil); err == nil {
		t.Fatal("expected error for invalid initial config, got nil")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "aura.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var mu sync.Mutex
	var callbackOld, callbackNew *config.Config
	called := make(chan struct{}, 1)

	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		callbackOld, callbackNew = old, new
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	writeFile(t, cfgPath, watcherUpdatedYAML)

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	if callbackOld.LogLevel != config.LogInfo {
		t.Errorf("old log_level: got %q, want %q", callbackOld.LogLevel, config.LogInfo)
	}
	if callbackNew.LogLevel != config.LogDebug {
		t.Errorf("new log_level: got %q, want %q", callbackNew.LogLevel, config.LogDebug)
	}
	d := config.Diff(callbackOld, callbackNew)
	if !d.LogLevelChanged || !d.VoicesChanged {
		t.Errorf("want live changes, got %+v", d)
	}
	if cur := w.Current(); cur.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level: got %q, want %q", cur.LogLevel, config.LogDebug)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "aura.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var mu sync.Mutex
	calls := 0
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, config.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	writeFile(t, cfgPath, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callback invoked %d times for an invalid file", calls)
	}
	if w.Current().LogLevel != config.LogInfo {
		t.Errorf("want old config kept, got %q", w.Current().LogLevel)
	}
}

func TestWatcher_EnvOverridesSurviveReload(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "aura.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	lookup := func(k string) (string, bool) {
		if k == config.EnvBackendURL {
			return "https://env.example.com", true
		}
		return "", false
	}
	called := make(chan *config.Config, 1)
	w, err := config.NewWatcher(cfgPath, func(_, new *config.Config) {
		select {
		case called <- new:
		default:
		}
	}, config.WithEnv(lookup), config.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Backend.BaseURL; got != "https://env.example.com" {
		t.Fatalf("want env override on initial load, got %q", got)
	}
	writeFile(t, cfgPath, watcherUpdatedYAML)
	select {
	case cfg := <-called:
		if cfg.Backend.BaseURL != "https://env.example.com" {
			t.Errorf("want env override after reload, got %q", cfg.Backend.BaseURL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}
}

func TestWatcher_StopNoLeak(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	cfgPath := filepath.Join(t.TempDir(), "aura.yaml")
	writeFile(t, cfgPath, watcherValidYAML)
	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Stop()
	w.Stop()

	goleak.VerifyNone(t, ignore)
}
