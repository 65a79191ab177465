// Package orchestrator coordinates one research conversation.
//
// The [Orchestrator] owns the in-memory transcript and the session id. It
// sends user input to the backend, appends the answer (or a synthesized
// error message) to the transcript, persists every append, feeds bot
// messages to the insight panel and optionally autoplays them. It is the
// only writer of the transcript; front-ends observe it through [Observer].
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/pkg/backend"
	"github.com/MrWong99/aura/pkg/chat"
)

// DefaultAutoplayDelay is how long a fresh bot message waits before it is
// spoken automatically.
const DefaultAutoplayDelay = 500 * time.Millisecond

// History persists the session id and the transcript.
type History interface {
	SaveSession(ctx context.Context, id string) error
	LoadSession(ctx context.Context) (string, error)
	SaveTranscript(ctx context.Context, msgs []chat.Message) error
	LoadTranscript(ctx context.Context) ([]chat.Message, error)
	Clear(ctx context.Context) error
}

// Speaker plays message text. The owner names the control that asked.
type Speaker interface {
	Speak(owner, text string, autoplay bool) error
	Stop()
}

// Facts is the quick fact overlay shown while a request is in flight.
type Facts interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
}

// Observer is notified of every visible change. Calls are made without
// internal locks held, possibly from several goroutines.
type Observer interface {
	// MessageAppended reports a new transcript entry at index. replay is
	// true for messages restored from history.
	MessageAppended(index int, msg chat.Message, replay bool)
	// TypingChanged toggles the "assistant is typing" indicator.
	TypingChanged(typing bool)
	// PanelChanged delivers the full insight panel, top first.
	PanelChanged(units []insight.Unit)
	// Reset reports that the conversation was cleared.
	Reset()
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) MessageAppended(int, chat.Message, bool) {}
func (NopObserver) TypingChanged(bool)                      {}
func (NopObserver) PanelChanged([]insight.Unit)             {}
func (NopObserver) Reset()                                  {}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithObserver registers the front-end observer.
func WithObserver(o Observer) Option {
	return func(c *Orchestrator) { c.observer = o }
}

// WithAutoplay sets whether fresh bot messages are spoken automatically.
// It defaults to true.
func WithAutoplay(on bool) Option {
	return func(c *Orchestrator) { c.autoplay = on }
}

// WithAutoplayDelay sets the pause before autoplay starts. Zero speaks
// synchronously.
func WithAutoplayDelay(d time.Duration) Option {
	return func(c *Orchestrator) { c.autoplayDelay = d }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Orchestrator) { c.metrics = m }
}

// WithPanel replaces the default empty insight panel.
func WithPanel(p *insight.Panel) Option {
	return func(c *Orchestrator) { c.panel = p }
}

// Orchestrator runs the conversation. All methods are safe for concurrent
// use. Concurrent sends are allowed; none cancels another.
type Orchestrator struct {
	client        backend.Client
	history       History
	speaker       Speaker
	facts         Facts
	panel         *insight.Panel
	observer      Observer
	metrics       *observe.Metrics
	autoplayDelay time.Duration

	mu         sync.Mutex
	transcript []chat.Message
	sessionID  string
	// epoch increments on every NewChat. Responses that were requested in
	// an older epoch are discarded.
	epoch     uint64
	autoplay  bool
	autoTimer *time.Timer
}

// New wires an orchestrator. Call [Orchestrator.Initialize] before use.
func New(client backend.Client, history History, speaker Speaker, facts Facts, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:        client,
		history:       history,
		speaker:       speaker,
		facts:         facts,
		autoplay:      true,
		autoplayDelay: DefaultAutoplayDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.panel == nil {
		o.panel = insight.NewPanel(insight.WithMetrics(o.metrics))
	}
	return o
}

// OwnerKey is the playback owner of the transcript message at index.
func OwnerKey(index int) string {
	return "msg-" + strconv.Itoa(index)
}

// Initialize restores the persisted session id and transcript. Restored
// messages are shown but never re-persisted, derived or spoken.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	sid, err := o.history.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: initialize: %w", err)
	}
	msgs, err := o.history.LoadTranscript(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: initialize: %w", err)
	}

	o.mu.Lock()
	o.sessionID = sid
	base := len(o.transcript)
	o.transcript = append(o.transcript, msgs...)
	o.mu.Unlock()

	for i, m := range msgs {
		o.metrics.RecordMessage(ctx, string(m.Sender), true)
		o.observer.MessageAppended(base+i, m, true)
	}
	slog.Info("orchestrator: history restored", "messages", len(msgs), "has_session", sid != "")
	return nil
}

// Send submits text as a user message and waits for the answer.
//
// Input that is empty after trimming is ignored and ok is false. Otherwise
// the user message is appended and persisted before the request is issued,
// and the bot reply (or a synthesized failure message) is appended before
// the quick fact overlay and typing indicator are torn down. ok is false
// when the reply was discarded because [Orchestrator.NewChat] ran while the
// request was in flight.
func (o *Orchestrator) Send(ctx context.Context, text string) (reply chat.Message, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, false
	}

	question := chat.Message{Sender: chat.SenderUser, Text: text}
	o.mu.Lock()
	epoch, sid := o.epoch, o.sessionID
	idx := o.appendLocked(ctx, question)
	o.mu.Unlock()

	ctx, span := observe.StartSpan(observe.WithSession(ctx, sid), "orchestrator.send")
	defer span.End()
	log := observe.Logger(ctx)
	o.announce(ctx, idx, question)

	o.observer.TypingChanged(true)
	o.facts.Start(ctx)
	defer func() {
		o.facts.Stop(ctx)
		o.observer.TypingChanged(false)
	}()

	start := time.Now()
	resp, err := o.client.Send(ctx, backend.Request{Message: text, SessionID: sid})
	elapsed := time.Since(start)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}

	if err != nil {
		reply = chat.Message{Sender: chat.SenderBot, Text: FailureText(err)}
	} else {
		reply = chat.Message{Sender: chat.SenderBot, Text: resp.Response, Data: resp.Data}
	}

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		o.metrics.RecordBackendRequest(ctx, "stale", elapsed)
		log.Info("orchestrator: discarding response from a previous conversation", "err", err)
		return chat.Message{}, false
	}
	if err == nil && resp.SessionID != "" {
		o.sessionID = resp.SessionID
		if err := o.history.SaveSession(ctx, o.sessionID); err != nil {
			log.Warn("orchestrator: persisting session failed", "err", err)
		}
	}
	idx = o.appendLocked(ctx, reply)
	o.mu.Unlock()

	if err != nil {
		o.metrics.RecordBackendRequest(ctx, "error", elapsed)
		log.Warn("orchestrator: send failed", "err", err, "duration", elapsed)
	} else {
		o.metrics.RecordBackendRequest(ctx, "ok", elapsed)
		log.Debug("orchestrator: reply received", "duration", elapsed, "has_data", reply.Data != nil)
	}

	o.announce(ctx, idx, reply)
	o.react(ctx, idx, reply, epoch)
	return reply, true
}

// FailureText is the bot message shown when an exchange fails.
func FailureText(err error) string {
	return "Error: " + errorMessage(err) + ". Please try again."
}

// errorMessage prefers the status text of a backend rejection over the
// wrapped transport chain.
func errorMessage(err error) string {
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}

// react updates the insight panel from a fresh bot message and schedules
// its autoplay.
func (o *Orchestrator) react(ctx context.Context, idx int, msg chat.Message, epoch uint64) {
	if units := insight.Derive(msg.Text, msg.Data); len(units) > 0 {
		o.panel.Apply(ctx, units)
		o.observer.PanelChanged(o.panel.Units())
	}

	o.mu.Lock()
	enabled := o.autoplay && o.epoch == epoch
	o.mu.Unlock()
	if !enabled {
		return
	}

	owner := OwnerKey(idx)
	play := func() {
		o.mu.Lock()
		current := o.epoch == epoch
		o.mu.Unlock()
		if !current {
			return
		}
		if err := o.speaker.Speak(owner, msg.Text, true); err != nil {
			slog.Warn("orchestrator: autoplay failed", "owner", owner, "err", err)
		}
	}
	if o.autoplayDelay <= 0 {
		play()
		return
	}
	o.mu.Lock()
	if o.autoTimer != nil {
		o.autoTimer.Stop()
	}
	o.autoTimer = time.AfterFunc(o.autoplayDelay, play)
	o.mu.Unlock()
}

// appendLocked adds msg to the transcript and persists the whole
// transcript. It returns the message index. o.mu must be held.
func (o *Orchestrator) appendLocked(ctx context.Context, msg chat.Message) int {
	idx := len(o.transcript)
	o.transcript = append(o.transcript, msg)
	if err := o.history.SaveTranscript(ctx, o.transcript); err != nil {
		observe.Logger(ctx).Warn("orchestrator: persisting transcript failed", "err", err)
	}
	return idx
}

// announce records and publishes an appended message.
func (o *Orchestrator) announce(ctx context.Context, idx int, msg chat.Message) {
	o.metrics.RecordMessage(ctx, string(msg.Sender), false)
	o.observer.MessageAppended(idx, msg, false)
}

// NewChat clears the conversation: the backend session (best effort), the
// persisted state, the transcript, the insight panel, any playback and the
// quick fact overlay. Responses still in flight are discarded on arrival.
func (o *Orchestrator) NewChat(ctx context.Context) error {
	o.mu.Lock()
	sid := o.sessionID
	o.mu.Unlock()

	if r, ok := o.client.(backend.Resetter); ok && sid != "" {
		if err := r.Reset(ctx, sid); err != nil {
			observe.Logger(ctx).Warn("orchestrator: backend reset failed", "session_id", sid, "err", err)
		}
	}

	o.mu.Lock()
	err := o.history.Clear(ctx)
	o.transcript = nil
	o.sessionID = ""
	o.epoch++
	if o.autoTimer != nil {
		o.autoTimer.Stop()
		o.autoTimer = nil
	}
	o.mu.Unlock()

	o.panel.Reset()
	o.speaker.Stop()
	o.facts.Stop(ctx)
	o.observer.Reset()

	if err != nil {
		return fmt.Errorf("orchestrator: new chat: %w", err)
	}
	return nil
}

// ToggleAutoplay flips autoplay and returns the new setting.
func (o *Orchestrator) ToggleAutoplay() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoplay = !o.autoplay
	return o.autoplay
}

// Autoplay reports whether autoplay is on.
func (o *Orchestrator) Autoplay() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoplay
}

// ErrNotSpeakable is returned by [Orchestrator.Speak] for indexes that do
// not name a bot message.
var ErrNotSpeakable = errors.New("orchestrator: only bot messages can be spoken")

// Speak toggles playback of the bot message at index.
func (o *Orchestrator) Speak(index int) error {
	o.mu.Lock()
	if index < 0 || index >= len(o.transcript) || !o.transcript[index].IsBot() {
		o.mu.Unlock()
		return ErrNotSpeakable
	}
	text := o.transcript[index].Text
	o.mu.Unlock()
	return o.speaker.Speak(OwnerKey(index), text, false)
}

// LastBotIndex returns the index of the newest bot message, or -1.
func (o *Orchestrator) LastBotIndex() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.transcript) - 1; i >= 0; i-- {
		if o.transcript[i].IsBot() {
			return i
		}
	}
	return -1
}

// Transcript returns a copy of the transcript, oldest first.
func (o *Orchestrator) Transcript() []chat.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]chat.Message(nil), o.transcript...)
}

// SessionID returns the current backend session id, or "".
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Panel returns the insight panel.
func (o *Orchestrator) Panel() *insight.Panel {
	return o.panel
}
