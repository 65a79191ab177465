package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/aura/pkg/backend"
)

// Compile-time interface checks.
var (
	_ backend.Client   = (*GuardedClient)(nil)
	_ backend.Resetter = (*GuardedClient)(nil)
)

// GuardedClient wraps a [backend.Client] with a [CircuitBreaker]. A rejected
// send surfaces as an ordinary error wrapping [ErrCircuitOpen], so callers
// keep a single failure path.
type GuardedClient struct {
	next    backend.Client
	breaker *CircuitBreaker
}

// NewGuardedClient wraps next. cfg.IsFailure defaults to [IsBackendFailure].
func NewGuardedClient(next backend.Client, cfg CircuitBreakerConfig) *GuardedClient {
	if cfg.Name == "" {
		cfg.Name = "backend"
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsBackendFailure
	}
	return &GuardedClient{next: next, breaker: NewCircuitBreaker(cfg)}
}

// IsBackendFailure reports whether err says the backend itself is unhealthy:
// transport errors and 5xx statuses. Client errors (4xx) and caller
// cancellation do not count.
func IsBackendFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}

// Send implements [backend.Client].
func (g *GuardedClient) Send(ctx context.Context, req backend.Request) (*backend.Response, error) {
	var resp *backend.Response
	err := g.breaker.Execute(func() error {
		var err error
		resp, err = g.next.Send(ctx, req)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, fmt.Errorf("backend temporarily unavailable: %w", err)
	}
	return resp, err
}

// Reset implements [backend.Resetter]. It bypasses the breaker; a reset is
// best-effort and must not count towards tripping it.
func (g *GuardedClient) Reset(ctx context.Context, sessionID string) error {
	r, ok := g.next.(backend.Resetter)
	if !ok {
		return nil
	}
	return r.Reset(ctx, sessionID)
}

// Ping fails while the breaker is open and otherwise probes the wrapped
// client when it can.
func (g *GuardedClient) Ping(ctx context.Context) error {
	if st := g.breaker.State(); st == StateOpen {
		return fmt.Errorf("circuit breaker is %s", st)
	}
	if p, ok := g.next.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedClient) Breaker() *CircuitBreaker { return g.breaker }
