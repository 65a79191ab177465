// Package speech defines the speech synthesis capability used for spoken
// playback of bot responses.
//
// An [Engine] models an engine-wide utterance queue: at most one utterance
// is audible at a time and [Engine.Cancel] silences whatever is playing.
// Progress is reported asynchronously through [Utterance.OnEvent]; events
// may arrive late, after the utterance was cancelled, so consumers must
// compare [Event.UtteranceID] with the utterance they currently own.
package speech

import (
	"context"
	"errors"
)

// ErrInterrupted is carried by an [EventError] when an utterance was
// cancelled before it finished.
var ErrInterrupted = errors.New("speech: utterance interrupted")

// Voice describes one voice the engine can speak with.
type Voice struct {
	ID   string
	Name string
	Lang string
}

// EventKind enumerates utterance lifecycle events.
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventError
	EventPause
	EventResume
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification for an utterance.
type Event struct {
	Kind        EventKind
	UtteranceID uint64

	// Err is set for [EventError].
	Err error
}

// Utterance is a request to speak Text.
type Utterance struct {
	// ID tags every event emitted for this utterance.
	ID uint64

	Text string

	// Voice selects the voice. Nil leaves the choice to the engine.
	Voice *Voice

	// Rate and Pitch scale delivery; 1.0 is normal.
	Rate  float64
	Pitch float64

	// OnEvent receives lifecycle events. It may be called from any
	// goroutine, including synchronously from within an Engine method, so it
	// must not call back into the engine while holding locks the engine
	// caller holds.
	OnEvent func(Event)
}

// Emit delivers an event of the given kind to OnEvent when set.
func (u *Utterance) Emit(kind EventKind, err error) {
	if u.OnEvent != nil {
		u.OnEvent(Event{Kind: kind, UtteranceID: u.ID, Err: err})
	}
}

// Engine is a speech synthesis engine with a single playback slot.
type Engine interface {
	// Supported reports whether speech is available at all.
	Supported() bool

	// Voices lists the voices available right now. It may be empty while
	// the engine is still discovering them.
	Voices() []Voice

	// Speak starts u, cancelling anything already playing. The call returns
	// once the utterance is queued; completion is reported via events.
	Speak(u *Utterance) error

	// Pause suspends the current utterance in place.
	Pause()

	// Resume continues a paused utterance.
	Resume()

	// Cancel stops the current utterance, if any.
	Cancel()

	// Speaking reports whether an utterance is active, paused or not.
	Speaking() bool

	// Paused reports whether the active utterance is paused.
	Paused() bool
}

// VoiceLoader is implemented by engines that discover voices remotely.
type VoiceLoader interface {
	LoadVoices(ctx context.Context) ([]Voice, error)
}

// Unsupported is an [Engine] for environments without speech output. Every
// operation is a no-op.
type Unsupported struct{}

var _ Engine = Unsupported{}

func (Unsupported) Supported() bool        { return false }
func (Unsupported) Voices() []Voice        { return nil }
func (Unsupported) Speak(*Utterance) error { return errors.New("speech: not supported") }
func (Unsupported) Pause()                 {}
func (Unsupported) Resume()                {}
func (Unsupported) Cancel()                {}
func (Unsupported) Speaking() bool         { return false }
func (Unsupported) Paused() bool           { return false }
