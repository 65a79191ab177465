// Package quickfact runs the "Did you know?" overlay shown while a research
// request is in flight.
//
// A session picks a few distinct facts from a fixed corpus and drives two
// independent repeating timers: one rotates through the picked facts, the
// other animates a progress bar that wraps back to zero after reaching 100.
// [Rotator.Stop] clears both timers and hides the overlay; it is safe to call
// at any time, including when no session is running.
package quickfact

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MrWong99/aura/internal/observe"
)

// DefaultFacts is the built-in fact corpus.
var DefaultFacts = []string{
	"The global AI market is expected to reach $1.8 trillion by 2030",
	"Over 90% of Fortune 500 companies use AI in some capacity",
	"Tesla's market cap reached $1 trillion in 2021",
	"The average company uses 110 different SaaS applications",
	"Cloud computing market grows at 17% annually",
	"Microsoft Azure has 200+ data centers worldwide",
	"Apple's App Store has over 1.8 million apps",
	"Nvidia's GPUs power 90% of AI workloads",
	"Amazon Web Services controls 32% of cloud market",
	"Google processes 8.5 billion searches per day",
}

const (
	DefaultCount         = 3
	DefaultRotateEvery   = 4 * time.Second
	DefaultProgressEvery = 100 * time.Millisecond
)

// Frame is what the overlay shows at one moment.
type Frame struct {
	Visible bool
	Fact    string
	// Index is the position of Fact among the Total picked facts.
	Index int
	Total int
	// Progress is the bar width in percent, in [0, 100].
	Progress float64
}

// Observer receives every frame change. It is called without internal
// locks held and must not block for long.
type Observer func(Frame)

// Option configures a [Rotator].
type Option func(*Rotator)

// WithScheduler replaces the default [TickerScheduler].
func WithScheduler(s Scheduler) Option {
	return func(r *Rotator) { r.sched = s }
}

// WithFacts replaces the fact corpus.
func WithFacts(facts []string) Option {
	return func(r *Rotator) { r.corpus = append([]string(nil), facts...) }
}

// WithCount sets how many facts a session picks.
func WithCount(n int) Option {
	return func(r *Rotator) { r.count = n }
}

// WithPeriods sets the rotation and progress timer periods.
func WithPeriods(rotate, progress time.Duration) Option {
	return func(r *Rotator) {
		r.rotateEvery = rotate
		r.progressEvery = progress
	}
}

// WithObserver registers the frame observer.
func WithObserver(o Observer) Option {
	return func(r *Rotator) { r.observer = o }
}

// WithMetrics records sessions on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Rotator) { r.metrics = m }
}

// WithRand makes fact selection use src.
func WithRand(src *rand.Rand) Option {
	return func(r *Rotator) { r.perm = src.Perm }
}

// Rotator owns the quick fact overlay and its timers. It is safe for
// concurrent use.
type Rotator struct {
	sched         Scheduler
	corpus        []string
	count         int
	rotateEvery   time.Duration
	progressEvery time.Duration
	observer      Observer
	metrics       *observe.Metrics
	perm          func(n int) []int

	mu      sync.Mutex
	session uint64
	active  bool
	frame   Frame
	facts   []string
	stops   []func()
	step    float64
}

// New returns an idle rotator.
func New(opts ...Option) *Rotator {
	r := &Rotator{
		sched:         TickerScheduler{},
		corpus:        DefaultFacts,
		count:         DefaultCount,
		rotateEvery:   DefaultRotateEvery,
		progressEvery: DefaultProgressEvery,
		perm:          rand.Perm,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.rotateEvery <= 0 {
		r.rotateEvery = DefaultRotateEvery
	}
	if r.progressEvery <= 0 {
		r.progressEvery = DefaultProgressEvery
	}
	// The bar fills once per rotation period.
	r.step = 100 * float64(r.progressEvery) / float64(r.rotateEvery)
	return r
}

// Pick returns up to count distinct facts from the corpus in random order.
func (r *Rotator) Pick() []string {
	n := min(r.count, len(r.corpus))
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for _, i := range r.perm(len(r.corpus))[:n] {
		out = append(out, r.corpus[i])
	}
	return out
}

// Start opens a new session, replacing any running one.
func (r *Rotator) Start(ctx context.Context) {
	r.Stop(ctx)

	facts := r.Pick()
	if len(facts) == 0 {
		return
	}

	r.mu.Lock()
	r.session++
	id := r.session
	r.active = true
	r.facts = facts
	r.frame = Frame{Visible: true, Fact: facts[0], Index: 0, Total: len(facts)}
	frame := r.frame
	r.mu.Unlock()

	r.metrics.QuickFactSessions.Add(ctx, 1)
	r.notify(frame)

	stopRotate := r.sched.Every(r.rotateEvery, func() { r.rotate(id) })
	stopProgress := r.sched.Every(r.progressEvery, func() { r.advance(id) })

	r.mu.Lock()
	if r.session == id && r.active {
		r.stops = []func(){stopRotate, stopProgress}
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	// Stopped while the timers were being registered.
	stopRotate()
	stopProgress()
}

func (r *Rotator) rotate(id uint64) {
	r.mu.Lock()
	if !r.active || r.session != id {
		r.mu.Unlock()
		return
	}
	r.frame.Index = (r.frame.Index + 1) % len(r.facts)
	r.frame.Fact = r.facts[r.frame.Index]
	frame := r.frame
	r.mu.Unlock()
	r.notify(frame)
}

func (r *Rotator) advance(id uint64) {
	r.mu.Lock()
	if !r.active || r.session != id {
		r.mu.Unlock()
		return
	}
	if r.frame.Progress >= 100 {
		r.frame.Progress = 0
	} else {
		r.frame.Progress = min(r.frame.Progress+r.step, 100)
	}
	frame := r.frame
	r.mu.Unlock()
	r.notify(frame)
}

// Stop ends the running session, clearing both timers and hiding the
// overlay. Calling it with no session running only hides the overlay.
func (r *Rotator) Stop(ctx context.Context) {
	r.mu.Lock()
	wasActive, wasVisible := r.active, r.frame.Visible
	stops := r.stops
	r.stops = nil
	r.active = false
	r.facts = nil
	r.frame = Frame{}
	r.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if wasActive {
		r.metrics.QuickFactSessions.Add(ctx, -1)
	}
	if wasVisible {
		r.notify(Frame{})
	}
}

// Dismiss hides the overlay. The timers keep running until [Rotator.Stop].
func (r *Rotator) Dismiss() {
	r.mu.Lock()
	if !r.frame.Visible {
		r.mu.Unlock()
		return
	}
	r.frame.Visible = false
	frame := r.frame
	r.mu.Unlock()
	r.notify(frame)
}

// Frame returns the current overlay state.
func (r *Rotator) Frame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// Active reports whether a session is running.
func (r *Rotator) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Rotator) notify(f Frame) {
	if r.observer != nil {
		r.observer(f)
	}
}
