// Package mock provides a manually driven quickfact.Scheduler.
//
// Timers never fire on their own. Tests advance them explicitly with Fire:
//
//	s := &mock.Scheduler{}
//	r := quickfact.New(quickfact.WithScheduler(s))
//	r.Start(ctx)
//	s.Fire(4 * time.Second) // rotate once
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/aura/internal/quickfact"
)

type timer struct {
	period  time.Duration
	fn      func()
	stopped bool
}

// Scheduler is a mock implementation of quickfact.Scheduler.
type Scheduler struct {
	mu     sync.Mutex
	timers []*timer

	// EveryCalls records the period of every Every call in order.
	EveryCalls []time.Duration
}

// Every records the timer and returns its stop function.
func (s *Scheduler) Every(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &timer{period: d, fn: fn}
	s.timers = append(s.timers, t)
	s.EveryCalls = append(s.EveryCalls, d)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.stopped = true
	}
}

// Fire runs every active timer with period d once and returns how many ran.
// Callbacks run without the scheduler lock held.
func (s *Scheduler) Fire(d time.Duration) int {
	s.mu.Lock()
	var fns []func()
	for _, t := range s.timers {
		if !t.stopped && t.period == d {
			fns = append(fns, t.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Active returns the number of timers that have not been stopped.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

var _ quickfact.Scheduler = (*Scheduler)(nil)
