package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/aura/internal/app"
	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/internal/playback"
	"github.com/MrWong99/aura/internal/quickfact"
	"github.com/MrWong99/aura/pkg/chat"
)

// bridgeBuffer is the number of notifications queued before a sender waits
// for the UI to catch up.
const bridgeBuffer = 256

// Notifications delivered to [Model.Update].
type (
	appendedMsg struct {
		index  int
		msg    chat.Message
		replay bool
	}
	typingMsg   bool
	panelMsg    []insight.Unit
	resetMsg    struct{}
	playbackMsg struct {
		owner string
		state playback.State
	}
	factMsg quickfact.Frame
)

// Bridge forwards application notifications to the bubbletea event loop.
// It is created before the application so it can be passed to
// [app.WithObserver], and drained by the [Model] once the program runs.
type Bridge struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

var _ app.Observer = (*Bridge)(nil)

// NewBridge returns an open bridge.
func NewBridge() *Bridge {
	return &Bridge{
		ch:   make(chan tea.Msg, bridgeBuffer),
		done: make(chan struct{}),
	}
}

// Close releases every blocked sender and makes later notifications no-ops.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

// wait returns a command that yields the next notification. The model
// re-arms it after handling each one.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) MessageAppended(index int, msg chat.Message, replay bool) {
	b.send(appendedMsg{index: index, msg: msg, replay: replay})
}

func (b *Bridge) TypingChanged(typing bool) { b.send(typingMsg(typing)) }

func (b *Bridge) PanelChanged(units []insight.Unit) {
	b.send(panelMsg(append([]insight.Unit(nil), units...)))
}

func (b *Bridge) Reset() { b.send(resetMsg{}) }

func (b *Bridge) PlaybackChanged(owner string, s playback.State) {
	b.send(playbackMsg{owner: owner, state: s})
}

func (b *Bridge) FactChanged(f quickfact.Frame) { b.send(factMsg(f)) }
