package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/aura/pkg/backend"
)

var (
	_ backend.Client   = (*FailoverClient)(nil)
	_ backend.Resetter = (*FailoverClient)(nil)
)

// pinger is implemented by clients that can probe their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// FailoverClient spreads sends over backend replicas. Each send is a single
// attempt against the first replica whose breaker is not open; a failed send
// is returned to the caller and never repeated elsewhere. Once a replica's
// breaker trips, later sends go to the next replica.
type FailoverClient struct {
	group *FallbackGroup[backend.Client]
}

// NewFailoverClient creates a client without replicas; add them with
// [FailoverClient.Add]. cfg.IsFailure defaults to [IsBackendFailure].
func NewFailoverClient(cfg CircuitBreakerConfig) *FailoverClient {
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsBackendFailure
	}
	return &FailoverClient{group: NewFallbackGroup[backend.Client](cfg)}
}

// Add registers a replica. The first one added is the primary.
func (f *FailoverClient) Add(name string, c backend.Client) {
	f.group.Add(name, c)
}

// Send implements [backend.Client].
func (f *FailoverClient) Send(ctx context.Context, req backend.Request) (*backend.Response, error) {
	resp, err := Call(f.group, func(c backend.Client) (*backend.Response, error) {
		return c.Send(ctx, req)
	})
	if errors.Is(err, ErrUnavailable) {
		return nil, fmt.Errorf("backend temporarily unavailable: %w", err)
	}
	return resp, err
}

// Reset implements [backend.Resetter]. The session may live on any replica,
// so every reachable replica is asked to drop it.
func (f *FailoverClient) Reset(ctx context.Context, sessionID string) error {
	var errs []error
	f.group.Each(func(name string, c backend.Client) bool {
		if r, ok := c.(backend.Resetter); ok {
			if err := r.Reset(ctx, sessionID); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		return true
	})
	return errors.Join(errs...)
}

// Ping succeeds when at least one replica with a non-open breaker answers.
// Replicas that cannot ping count as reachable.
func (f *FailoverClient) Ping(ctx context.Context) error {
	var (
		errs       []error
		up, tested bool
	)
	f.group.Each(func(name string, c backend.Client) bool {
		tested = true
		p, ok := c.(pinger)
		if !ok {
			up = true
			return false
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return true
		}
		up = true
		return false
	})
	switch {
	case up:
		return nil
	case !tested:
		return fmt.Errorf("%w: every circuit breaker is open", ErrUnavailable)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

// States returns the breaker state of every replica.
func (f *FailoverClient) States() []MemberState { return f.group.States() }
