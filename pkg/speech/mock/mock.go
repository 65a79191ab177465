// Package mock provides a scriptable [speech.Engine] for tests.
//
// The mock behaves like a single-slot browser speech queue: Speak cancels
// whatever is active, Pause and Resume toggle the active utterance, and
// Cancel drops it with an interrupted error event. By default events are
// delivered synchronously from inside the call that caused them. Set
// Deferred to queue them instead and deliver them later with Flush, which
// lets tests reproduce late callbacks from cancelled utterances.
package mock

import (
	"sync"

	"github.com/MrWong99/aura/pkg/speech"
)

var _ speech.Engine = (*Engine)(nil)

// pending is an event waiting for delivery.
type pending struct {
	u  *speech.Utterance
	ev speech.Event
}

// Engine is a mock implementation of [speech.Engine].
type Engine struct {
	mu sync.Mutex

	// --- Configuration ---

	// Unsupported makes Supported return false.
	Unsupported bool

	// VoiceList is returned by Voices.
	VoiceList []speech.Voice

	// SpeakErr, if non-nil, is returned by Speak and nothing starts.
	SpeakErr error

	// Deferred queues events until Flush instead of delivering them inline.
	Deferred bool

	// --- State ---

	current *speech.Utterance
	paused  bool
	queue   []pending

	// --- Call records ---

	// Spoken records every utterance passed to Speak, in order.
	Spoken []*speech.Utterance

	// PauseCalls, ResumeCalls and CancelCalls count invocations.
	PauseCalls  int
	ResumeCalls int
	CancelCalls int
}

// Supported implements [speech.Engine].
func (e *Engine) Supported() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Unsupported
}

// Voices implements [speech.Engine].
func (e *Engine) Voices() []speech.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Voice(nil), e.VoiceList...)
}

// Speak implements [speech.Engine]. Any active utterance is interrupted and u
// starts immediately.
func (e *Engine) Speak(u *speech.Utterance) error {
	e.mu.Lock()
	e.Spoken = append(e.Spoken, u)
	if e.SpeakErr != nil {
		err := e.SpeakErr
		e.mu.Unlock()
		return err
	}
	var out []pending
	if e.current != nil {
		out = append(out, pending{e.current, speech.Event{Kind: speech.EventError, UtteranceID: e.current.ID, Err: speech.ErrInterrupted}})
	}
	e.current, e.paused = u, false
	out = append(out, pending{u, speech.Event{Kind: speech.EventStart, UtteranceID: u.ID}})
	e.mu.Unlock()

	e.deliver(out...)
	return nil
}

// Pause implements [speech.Engine].
func (e *Engine) Pause() {
	e.mu.Lock()
	e.PauseCalls++
	if e.current == nil || e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	p := pending{e.current, speech.Event{Kind: speech.EventPause, UtteranceID: e.current.ID}}
	e.mu.Unlock()
	e.deliver(p)
}

// Resume implements [speech.Engine].
func (e *Engine) Resume() {
	e.mu.Lock()
	e.ResumeCalls++
	if e.current == nil || !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	p := pending{e.current, speech.Event{Kind: speech.EventResume, UtteranceID: e.current.ID}}
	e.mu.Unlock()
	e.deliver(p)
}

// Cancel implements [speech.Engine].
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.CancelCalls++
	if e.current == nil {
		e.mu.Unlock()
		return
	}
	p := pending{e.current, speech.Event{Kind: speech.EventError, UtteranceID: e.current.ID, Err: speech.ErrInterrupted}}
	e.current, e.paused = nil, false
	e.mu.Unlock()
	e.deliver(p)
}

// Speaking implements [speech.Engine].
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Paused implements [speech.Engine].
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.paused
}

// Finish ends the active utterance naturally, as if playback reached the end.
func (e *Engine) Finish() {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return
	}
	p := pending{e.current, speech.Event{Kind: speech.EventEnd, UtteranceID: e.current.ID}}
	e.current, e.paused = nil, false
	e.mu.Unlock()
	e.deliver(p)
}

// Flush delivers all queued events in order. It is a no-op unless Deferred.
func (e *Engine) Flush() {
	e.mu.Lock()
	q := e.queue
	e.queue = nil
	e.mu.Unlock()
	for _, p := range q {
		if p.u.OnEvent != nil {
			p.u.OnEvent(p.ev)
		}
	}
}

// Current returns the active utterance, or nil.
func (e *Engine) Current() *speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SpokenCount returns how many utterances were passed to Speak.
func (e *Engine) SpokenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Spoken)
}

func (e *Engine) deliver(ps ...pending) {
	e.mu.Lock()
	if e.Deferred {
		e.queue = append(e.queue, ps...)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	for _, p := range ps {
		if p.u.OnEvent != nil {
			p.u.OnEvent(p.ev)
		}
	}
}
