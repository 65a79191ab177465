// Package playback implements the speech playback controller: a state
// machine over a [speech.Engine] that owns the single active utterance.
//
// State changes are driven only by engine events, never by caller intent.
// Every utterance is tagged with a monotonically increasing id and events
// carrying any other id are dropped, so a late callback from a cancelled
// utterance can never override the state of the one that replaced it.
//
// Observers receive (owner, state) pairs. An owner is an opaque key naming
// the control that started the utterance, e.g. one per transcript message;
// [Label] projects a state onto that control's label.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/pkg/speech"
)

// ErrUnsupported is returned by [Controller.Speak] for a user-initiated
// request when the engine cannot speak at all.
var ErrUnsupported = errors.New("playback: speech is not supported in this environment")

// State is the controller's playback state.
type State int

const (
	// Idle means no utterance is tagged with the owner.
	Idle State = iota

	// Speaking means the owner's utterance is playing.
	Speaking

	// Paused means the owner's utterance is suspended and can be resumed.
	Paused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Label returns the caption of a playback control in state s.
func Label(s State) string {
	switch s {
	case Speaking:
		return "Pause"
	case Paused:
		return "Resume"
	default:
		return "Listen"
	}
}

// Observer is notified of state changes. It is called without the
// controller's lock held.
type Observer func(owner string, s State)

// DefaultPreferredVoices are matched, in order, as substrings of voice names.
var DefaultPreferredVoices = []string{"Google US English", "Samantha", "Microsoft David"}

// DefaultSettleDelay lets a cancellation reach the engine before the next
// utterance starts.
const DefaultSettleDelay = 100 * time.Millisecond

// Option is a functional option for [New].
type Option func(*Controller)

// WithObserver registers the state-change observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithSettleDelay overrides [DefaultSettleDelay]. Zero starts synchronously.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

// WithPreferredVoices overrides [DefaultPreferredVoices].
func WithPreferredVoices(names ...string) Option {
	return func(c *Controller) { c.preferred = append([]string(nil), names...) }
}

// WithDelivery sets the utterance rate and pitch. Both default to 1.
func WithDelivery(rate, pitch float64) Option {
	return func(c *Controller) { c.rate, c.pitch = rate, pitch }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller is the speech playback controller. It is safe for concurrent use.
type Controller struct {
	engine   speech.Engine
	observer Observer
	settle   time.Duration
	rate     float64
	pitch    float64
	metrics  *observe.Metrics

	mu        sync.Mutex
	preferred []string
	seq       uint64
	current   uint64 // id of the owned utterance, 0 when none
	owner     string
	state     State
	timer     *time.Timer
}

// New creates a Controller over engine.
func New(engine speech.Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:    engine,
		settle:    DefaultSettleDelay,
		preferred: DefaultPreferredVoices,
		rate:      1,
		pitch:     1,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Speak plays text for owner.
//
// A user-initiated call (autoplay false) on the owner that is currently
// speaking pauses it, and on a paused owner resumes it, so one control works
// as a toggle. Every other call starts a fresh utterance, cancelling whatever
// is playing engine-wide.
//
// When the engine is unsupported, Speak returns [ErrUnsupported] for
// user-initiated calls and nil for autoplay.
func (c *Controller) Speak(owner, text string, autoplay bool) error {
	if !c.engine.Supported() {
		if autoplay {
			return nil
		}
		return ErrUnsupported
	}

	c.mu.Lock()
	if !autoplay && c.current != 0 && c.owner == owner {
		switch c.state {
		case Speaking:
			c.mu.Unlock()
			c.engine.Pause()
			return nil
		case Paused:
			c.mu.Unlock()
			c.engine.Resume()
			return nil
		}
	}

	c.seq++
	id := c.seq
	prevOwner, hadPrev := c.owner, c.current != 0
	c.current, c.owner, c.state = id, owner, Idle
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if hadPrev {
		c.notify(prevOwner, Idle)
	}
	c.engine.Cancel()

	start := func() { c.start(id, owner, text, autoplay) }
	if c.settle <= 0 {
		start()
		return nil
	}
	c.mu.Lock()
	if c.current == id {
		c.timer = time.AfterFunc(c.settle, start)
	}
	c.mu.Unlock()
	return nil
}

// start builds and speaks utterance id if it is still the owned one.
func (c *Controller) start(id uint64, owner, text string, autoplay bool) {
	c.mu.Lock()
	if c.current != id {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	preferred := c.preferred
	c.mu.Unlock()

	u := &speech.Utterance{
		ID:    id,
		Text:  StripMarkdown(text),
		Voice: PreferredVoice(c.engine.Voices(), preferred),
		Rate:  c.rate,
		Pitch: c.pitch,
	}
	u.OnEvent = func(ev speech.Event) { c.handle(owner, ev) }

	c.metrics.RecordUtterance(context.Background(), autoplay)
	if err := c.engine.Speak(u); err != nil {
		slog.Warn("playback: engine refused utterance", "owner", owner, "err", err)
		c.handle(owner, speech.Event{Kind: speech.EventError, UtteranceID: id, Err: err})
	}
}

// handle applies an engine event if it belongs to the owned utterance.
func (c *Controller) handle(owner string, ev speech.Event) {
	c.mu.Lock()
	if ev.UtteranceID != c.current || c.current == 0 {
		c.mu.Unlock()
		slog.Debug("playback: dropping stale speech event", "utterance", ev.UtteranceID, "event", ev.Kind)
		return
	}
	var next State
	switch ev.Kind {
	case speech.EventStart, speech.EventResume:
		next = Speaking
	case speech.EventPause:
		next = Paused
	case speech.EventEnd, speech.EventError:
		next = Idle
		c.current = 0
		if ev.Err != nil && !errors.Is(ev.Err, speech.ErrInterrupted) {
			slog.Warn("playback: utterance failed", "owner", owner, "err", ev.Err)
		}
	default:
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()

	c.notify(owner, next)
}

// Stop cancels the active utterance, including one still waiting out the
// settle delay.
func (c *Controller) Stop() {
	c.mu.Lock()
	owner, had := c.owner, c.current != 0
	c.current, c.state = 0, Idle
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.engine.Cancel()
	if had {
		c.notify(owner, Idle)
	}
}

// State returns the current state and the owner it applies to. The owner is
// empty when idle.
func (c *Controller) State() (owner string, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == 0 {
		return "", Idle
	}
	return c.owner, c.state
}

// StateOf returns the state as seen by owner's control.
func (c *Controller) StateOf(owner string) State {
	o, s := c.State()
	if o != owner {
		return Idle
	}
	return s
}

// SetPreferredVoices replaces the voice preference list for later utterances.
func (c *Controller) SetPreferredVoices(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preferred = append([]string(nil), names...)
}

func (c *Controller) notify(owner string, s State) {
	if c.observer != nil {
		c.observer(owner, s)
	}
}

var (
	markdownMarks = regexp.MustCompile("[*#_`]")
	markdownLink  = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// StripMarkdown removes emphasis, heading and code markers and collapses
// links to their label.
func StripMarkdown(s string) string {
	s = markdownMarks.ReplaceAllString(s, "")
	return markdownLink.ReplaceAllString(s, "$1")
}

// PreferredVoice returns the first voice whose name contains any of the
// preferred substrings, or nil when nothing matches.
func PreferredVoice(voices []speech.Voice, preferred []string) *speech.Voice {
	for _, v := range voices {
		for _, p := range preferred {
			if p != "" && strings.Contains(v.Name, p) {
				return &v
			}
		}
	}
	return nil
}
