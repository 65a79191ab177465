// Package resilience protects aura from a misbehaving research backend.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open). After
// repeated failures it rejects calls outright for a cool-down period so a dead
// backend answers instantly instead of stalling every send on a long timeout.
// [GuardedClient] applies a breaker to a [backend.Client]. [FailoverClient]
// spreads sends over backend replicas, each behind its own breaker, using the
// generic [FallbackGroup].
//
// Nothing here retries: one send is exactly one attempt against one replica,
// or none when every breaker is open.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has elapsed since the last failure.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probe calls admitted while half-open, and
	// the number of successes needed to close again. Default: 1.
	HalfOpenMax int

	// IsFailure classifies errors. Errors for which it returns false pass
	// through without counting against the breaker. Nil counts every error.
	IsFailure func(error) bool

	// Now is the clock. Nil means [time.Now].
	Now func() time.Time
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	failures       int
	openedAt       time.Time
	probes         int
	probeSuccesses int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(error) bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the breaker rejects the call, in which case it
// returns [ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil && cb.cfg.IsFailure(err) {
		cb.onFailure(probe)
	} else {
		cb.onSuccess(probe)
	}
	return err
}

// admit decides whether a call may proceed and whether it is a probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeSuccesses = 0
		slog.Info("circuit breaker half-open", "name", cb.cfg.Name)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker) onFailure(probe bool) {
	if probe || cb.state == StateHalfOpen {
		cb.trip()
		slog.Warn("circuit breaker re-opened by failed probe", "name", cb.cfg.Name)
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.MaxFailures {
		cb.trip()
		slog.Warn("circuit breaker opened",
			"name", cb.cfg.Name,
			"consecutive_failures", cb.failures,
			"reset_timeout", cb.cfg.ResetTimeout)
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	if !probe {
		if cb.state == StateClosed {
			cb.failures = 0
		}
		return
	}
	cb.probeSuccesses++
	if cb.state == StateHalfOpen && cb.probeSuccesses >= cb.cfg.HalfOpenMax {
		cb.state = StateClosed
		cb.failures = 0
		slog.Info("circuit breaker closed", "name", cb.cfg.Name)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.cfg.Now()
	cb.failures = 0
}

// State returns the current [State]. An open breaker whose timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeSuccesses = 0
}
