package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnavailable is returned when no member of a [FallbackGroup] can be
// tried: the group is empty or every breaker is open.
var ErrUnavailable = errors.New("no backend available")

// member pairs a value with its dedicated circuit breaker.
type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds interchangeable values in registration order. Each
// member is guarded by its own [CircuitBreaker] built from the group's
// config. A call goes to the first member whose breaker admits it; a member
// that keeps failing trips its breaker, which moves later calls to the next
// member.
//
// Members must be added before the group is used concurrently.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     CircuitBreakerConfig
}

// NewFallbackGroup creates an empty group. cfg.Name is ignored; every
// breaker is named after its member.
func NewFallbackGroup[T any](cfg CircuitBreakerConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a member. Members are tried in the order they are added.
func (fg *FallbackGroup[T]) Add(name string, v T) {
	cfg := fg.cfg
	cfg.Name = name
	fg.members = append(fg.members, member[T]{name: name, value: v, breaker: NewCircuitBreaker(cfg)})
}

// Len returns the number of members.
func (fg *FallbackGroup[T]) Len() int { return len(fg.members) }

// MemberState is the breaker state of one member.
type MemberState struct {
	Name  string
	State State
}

// States returns the breaker state of every member in order.
func (fg *FallbackGroup[T]) States() []MemberState {
	out := make([]MemberState, len(fg.members))
	for i, m := range fg.members {
		out[i] = MemberState{Name: m.name, State: m.breaker.State()}
	}
	return out
}

// Each calls fn for every member whose breaker is not open, bypassing the
// breakers, until fn returns false. It is meant for side calls that must not
// trip them.
func (fg *FallbackGroup[T]) Each(fn func(name string, v T) bool) {
	for _, m := range fg.members {
		if m.breaker.State() == StateOpen {
			continue
		}
		if !fn(m.name, m.value) {
			return
		}
	}
}

// Call runs fn exactly once, against the first member whose breaker admits
// the call, and returns its result as is. A failed call is never repeated on
// another member. When no member admits the call the error wraps
// [ErrUnavailable] and [ErrCircuitOpen].
// It is a function because methods cannot have type parameters.
func Call[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var zero R
	if len(fg.members) == 0 {
		return zero, fmt.Errorf("%w: no backends configured", ErrUnavailable)
	}
	for i := range fg.members {
		m := &fg.members[i]
		var (
			result    R
			attempted bool
		)
		err := m.breaker.Execute(func() error {
			attempted = true
			var err error
			result, err = fn(m.value)
			return err
		})
		if attempted {
			if err != nil {
				slog.Debug("backend call failed", "backend", m.name, "err", err)
			}
			return result, err
		}
		slog.Debug("skipping backend, circuit open", "backend", m.name)
	}
	return zero, fmt.Errorf("%w: %w", ErrUnavailable, ErrCircuitOpen)
}
