// Package health evaluates aura's dependencies: the research backend, the
// key-value store and the speech engine.
//
// The same checkers back two surfaces. [Handler.Register] mounts
//
//   - /healthz, a liveness probe that always returns 200 OK;
//   - /readyz, which returns 200 only when every [Checker] passes;
//
// on the local status server, and [Handler.Run] produces the report printed
// by `aura doctor`.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/aura/pkg/speech"
)

// CheckTimeout bounds a single check.
const CheckTimeout = 5 * time.Second

// Checker is a named health check function. Check returns nil when the
// dependency is healthy.
type Checker struct {
	// Name is the key in reports and JSON responses (e.g. "backend").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Pinger is implemented by the backend client and every kv store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts p to a [Checker].
func PingCheck(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// ErrSpeechUnavailable is reported by [SpeechCheck] for an engine that cannot
// speak in this environment.
var ErrSpeechUnavailable = errors.New("speech engine is not supported")

// SpeechCheck reports whether eng can speak. Engines that load their voice
// list remotely are asked to do so.
func SpeechCheck(eng speech.Engine) Checker {
	return Checker{Name: "speech", Check: func(ctx context.Context) error {
		if !eng.Supported() {
			return ErrSpeechUnavailable
		}
		if l, ok := eng.(speech.VoiceLoader); ok {
			if _, err := l.LoadVoices(ctx); err != nil {
				return err
			}
		}
		return nil
	}}
}

// Result is the outcome of one checker.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// OK reports whether the check passed.
func (r Result) OK() bool { return r.Err == nil }

// response is the JSON body of both endpoints.
type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates a fixed list of checkers. It is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] for the given checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Run evaluates every checker concurrently, each under [CheckTimeout], and
// returns the results in registration order.
func (h *Handler) Run(ctx context.Context) []Result {
	results := make([]Result, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)
			results[i] = Result{Name: c.Name, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz returns 200 only when every checker passes, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := response{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for _, rr := range h.Run(r.Context()) {
		if rr.OK() {
			res.Checks[rr.Name] = "ok"
			continue
		}
		res.Checks[rr.Name] = "fail: " + rr.Err.Error()
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
