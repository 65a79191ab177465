package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher monitors a config file and calls a callback when its content
// changes to another valid config. Invalid edits are logged and ignored; the
// last valid config stays current.
//
// The parent directory is watched rather than the file itself so that editors
// which save by renaming a temporary file are noticed.
type Watcher struct {
	path     string
	debounce time.Duration
	lookup   func(string) (string, bool)
	onChange func(old, new *Config)
	fsw      *fsnotify.Watcher

	mu       sync.Mutex
	current  *Config
	lastHash [sha256.Size]byte

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithDebounce sets the settle window after the last file event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithEnv applies [ApplyEnv] with lookup to every loaded config, so reloaded
// configs keep the environment overrides of the initial one.
func WithEnv(lookup func(string) (string, bool)) WatcherOption {
	return func(w *Watcher) { w.lookup = lookup }
}

// NewWatcher creates a config file watcher. It loads the initial config
// immediately and starts watching in a background goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %q: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the watcher and waits for its goroutine to exit. No callback
// runs after Stop returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.wg.Wait()
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher: fsnotify error", "path", w.path, "err", err)
		case <-timer.C:
			w.check()
		}
	}
}

// check reloads the file and, if its content changed and is valid, swaps the
// current config and calls onChange.
func (w *Watcher) check() {
	cfg, hash, err := w.loadAndHash()
	if err != nil {
		slog.Warn("config watcher: failed to load config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.lastHash = hash
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback can call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) loadAndHash() (*Config, [sha256.Size]byte, error) {
	var zero [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zero, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zero, err
	}
	if w.lookup != nil {
		ApplyEnv(cfg, w.lookup)
		if err := Validate(cfg); err != nil {
			return nil, zero, err
		}
	}
	return cfg, sha256.Sum256(data), nil
}
