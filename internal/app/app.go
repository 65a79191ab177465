// Package app wires all aura subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems from a [config.Config], Run executes the front-end next to the
// config watcher and the status server, and Shutdown tears everything down
// in order.
//
// For testing, inject doubles via functional options (WithStore, WithBackend,
// WithSpeechEngine, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/aura/internal/config"
	"github.com/MrWong99/aura/internal/health"
	"github.com/MrWong99/aura/internal/history"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/internal/orchestrator"
	"github.com/MrWong99/aura/internal/playback"
	"github.com/MrWong99/aura/internal/quickfact"
	"github.com/MrWong99/aura/internal/resilience"
	"github.com/MrWong99/aura/pkg/backend"
	"github.com/MrWong99/aura/pkg/backend/httpclient"
	"github.com/MrWong99/aura/pkg/kv"
	"github.com/MrWong99/aura/pkg/speech"
)

// voiceLoadTimeout bounds the voice list fetch during New.
const voiceLoadTimeout = 10 * time.Second

// Observer receives every visible state change of the application: the
// conversation itself, the playback state of each speakable message and the
// quick fact overlay. Front-ends implement it.
type Observer interface {
	orchestrator.Observer
	PlaybackChanged(owner string, s playback.State)
	FactChanged(f quickfact.Frame)
}

// NopObserver ignores every notification.
type NopObserver struct{ orchestrator.NopObserver }

func (NopObserver) PlaybackChanged(string, playback.State) {}
func (NopObserver) FactChanged(quickfact.Frame)            {}

// Frontend runs until ctx is cancelled or the user quits.
type Frontend func(ctx context.Context) error

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	configPath string
	levelVar   *slog.LevelVar
	registry   *config.Registry

	store     kv.Store
	client    backend.Client
	sender    backend.Client
	engine    speech.Engine
	scheduler quickfact.Scheduler
	observer  Observer
	metrics   *observe.Metrics

	history  *history.Store
	playback *playback.Controller
	facts    *quickfact.Rotator
	orch     *orchestrator.Orchestrator
	health   *health.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a key-value store instead of opening the configured one.
// The app does not close an injected store.
func WithStore(s kv.Store) Option {
	return func(a *App) { a.store = s }
}

// WithBackend injects a backend client instead of the HTTP client. It is
// still wrapped in the circuit breaker.
func WithBackend(c backend.Client) Option {
	return func(a *App) { a.client = c }
}

// WithSpeechEngine injects a speech engine instead of the configured one.
func WithSpeechEngine(e speech.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithRegistry builds the store and the speech engine from reg instead of
// [DefaultRegistry].
func WithRegistry(reg *config.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithScheduler injects the quick fact timer scheduler.
func WithScheduler(s quickfact.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithObserver registers the front-end observer.
func WithObserver(o Observer) Option {
	return func(a *App) { a.observer = o }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigPath enables live reload of the file at path during Run.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. It does not load the
// conversation; the front-end calls [orchestrator.Orchestrator.Initialize].
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.observer == nil {
		a.observer = NopObserver{}
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.registry == nil {
		a.registry = DefaultRegistry()
	}

	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initBackend(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init backend: %w", err)
	}
	if err := a.initSpeech(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init speech: %w", err)
	}
	a.initFacts()
	a.initOrchestrator()
	a.initHealth()
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the configured key-value store and the history adapter.
func (a *App) initStore(ctx context.Context) error {
	sc := a.cfg.Storage
	if a.store == nil {
		s, err := a.registry.CreateStore(ctx, sc)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
		slog.Info("storage ready", "driver", sc.Driver, "namespace", sc.Namespace)
	}
	a.history = history.New(a.store,
		history.WithNamespace(sc.Namespace),
		history.WithMetrics(a.metrics),
	)
	return nil
}

// initBackend builds the instrumented HTTP clients and guards them. With
// fallback URLs configured every replica gets its own breaker behind a
// [resilience.FailoverClient]; otherwise a single breaker guards the client.
func (a *App) initBackend() error {
	bc := a.cfg.Backend
	cb := resilience.CircuitBreakerConfig{
		MaxFailures:  bc.CircuitBreaker.MaxFailures,
		ResetTimeout: bc.CircuitBreaker.ResetTimeout,
	}
	if a.client != nil || len(bc.FallbackURLs) == 0 {
		if a.client == nil {
			c, err := a.newHTTPClient(bc.BaseURL)
			if err != nil {
				return err
			}
			a.client = c
		}
		a.sender = resilience.NewGuardedClient(a.client, cb)
		return nil
	}

	f := resilience.NewFailoverClient(cb)
	for _, u := range append([]string{bc.BaseURL}, bc.FallbackURLs...) {
		c, err := a.newHTTPClient(u)
		if err != nil {
			return err
		}
		f.Add(u, c)
	}
	a.sender = f
	return nil
}

func (a *App) newHTTPClient(baseURL string) (*httpclient.Client, error) {
	return httpclient.New(baseURL,
		httpclient.WithTimeout(a.cfg.Backend.Timeout),
		httpclient.WithTransport(observe.NewTransport(http.DefaultTransport, a.metrics)),
	)
}

// initSpeech builds the speech engine and the playback controller.
func (a *App) initSpeech(ctx context.Context) error {
	sp := a.cfg.Speech
	if a.engine == nil {
		eng, err := a.newEngine(ctx, sp)
		if err != nil {
			return err
		}
		a.engine = eng
	}
	a.playback = playback.New(a.engine,
		playback.WithObserver(a.observer.PlaybackChanged),
		playback.WithSettleDelay(sp.SettleDelay),
		playback.WithPreferredVoices(sp.PreferredVoices...),
		playback.WithDelivery(sp.Rate, sp.Pitch),
		playback.WithMetrics(a.metrics),
	)
	return nil
}

// newEngine builds the configured engine and loads its voice list when it
// can. An engine that holds resources is closed first on shutdown.
func (a *App) newEngine(ctx context.Context, sp config.SpeechConfig) (speech.Engine, error) {
	eng, err := a.registry.CreateEngine(ctx, sp)
	if err != nil {
		return nil, err
	}
	if c, ok := eng.(io.Closer); ok {
		a.closers = append([]func() error{c.Close}, a.closers...)
	}

	vl, ok := eng.(speech.VoiceLoader)
	if !ok {
		return eng, nil
	}
	lctx, cancel := context.WithTimeout(ctx, voiceLoadTimeout)
	defer cancel()
	if voices, err := vl.LoadVoices(lctx); err != nil {
		slog.Warn("speech voices unavailable; using the configured voice id", "err", err)
	} else {
		slog.Info("speech voices loaded", "count", len(voices))
	}
	return eng, nil
}

func (a *App) initFacts() {
	q := a.cfg.QuickFacts
	opts := []quickfact.Option{
		quickfact.WithCount(q.Count),
		quickfact.WithPeriods(q.RotateEvery, q.ProgressEvery),
		quickfact.WithObserver(a.observer.FactChanged),
		quickfact.WithMetrics(a.metrics),
	}
	if len(q.Facts) > 0 {
		opts = append(opts, quickfact.WithFacts(q.Facts))
	}
	if a.scheduler != nil {
		opts = append(opts, quickfact.WithScheduler(a.scheduler))
	}
	a.facts = quickfact.New(opts...)
	a.closers = append([]func() error{func() error {
		a.facts.Stop(context.Background())
		return nil
	}}, a.closers...)
}

func (a *App) initOrchestrator() {
	a.orch = orchestrator.New(a.sender, a.history, a.playback, a.facts,
		orchestrator.WithObserver(a.observer),
		orchestrator.WithAutoplay(a.cfg.Speech.AutoplayEnabled()),
		orchestrator.WithMetrics(a.metrics),
	)
	a.closers = append([]func() error{func() error {
		a.playback.Stop()
		return nil
	}}, a.closers...)
}

func (a *App) initHealth() {
	checkers := []health.Checker{
		health.PingCheck("storage", a.store),
		health.SpeechCheck(a.engine),
	}
	// An injected client that cannot ping gets no backend check.
	if _, ok := a.client.(health.Pinger); ok || a.client == nil {
		if p, ok := a.sender.(health.Pinger); ok {
			checkers = append([]health.Checker{health.PingCheck("backend", p)}, checkers...)
		}
	}
	a.health = health.New(checkers...)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Orchestrator returns the conversation orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Playback returns the speech playback controller.
func (a *App) Playback() *playback.Controller { return a.playback }

// Facts returns the quick fact rotator.
func (a *App) Facts() *quickfact.Rotator { return a.facts }

// History returns the persistent store adapter.
func (a *App) History() *history.Store { return a.history }

// Config returns the config the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Check evaluates every health checker.
func (a *App) Check(ctx context.Context) []health.Result { return a.health.Run(ctx) }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes front next to the config watcher (when a config path was
// given) and the status server (when telemetry.metrics_addr is set). It
// returns when front returns or any of them fails; the others are stopped.
func (a *App) Run(ctx context.Context, front Frontend) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.WithEnv(os.LookupEnv))
		if err != nil {
			slog.Warn("config reload disabled", "path", a.configPath, "err", err)
		} else {
			g.Go(func() error {
				<-ctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	if addr := a.cfg.Telemetry.MetricsAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("app: status server: %w", err)
		}
		srv := &http.Server{
			Handler:           a.statusHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		slog.Info("status server listening", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		// The front-end owns the process lifetime.
		defer cancel()
		if err := front(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// statusHandler serves /metrics, /healthz and /readyz.
func (a *App) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	a.health.Register(mux)
	return observe.Middleware(a.metrics)(mux)
}

// applyConfig is the watcher callback. Only the log level and preferred
// voices change live.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(ParseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VoicesChanged {
		a.playback.SetPreferredVoices(d.NewVoices)
		slog.Info("preferred voices changed", "voices", d.NewVoices)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ParseLevel converts a config log level to a slog level. Unknown levels
// map to info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Debug("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}

// closeAll releases whatever a failed New opened.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
