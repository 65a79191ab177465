// Package tui is aura's terminal front-end. It projects the conversation,
// the insight panel, the quick fact overlay and the playback controls onto
// a bubbletea program and turns key presses into orchestrator calls.
//
// Every call that can notify observers runs inside a [tea.Cmd], never on
// the Update goroutine, because notifications reach the model through the
// same event loop via a [Bridge].
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/MrWong99/aura/internal/export"
	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/internal/playback"
	"github.com/MrWong99/aura/internal/quickfact"
	"github.com/MrWong99/aura/pkg/chat"
)

// DefaultSuggestions are offered on the empty start screen.
var DefaultSuggestions = []string{
	"Research Nvidia's latest quarterly results",
	"Compare Apple and Microsoft on cloud revenue",
	"What are Tesla's biggest competitive risks?",
	"Build an account plan for Salesforce",
}

// Conversation is the part of the orchestrator the UI drives.
type Conversation interface {
	Initialize(ctx context.Context) error
	Send(ctx context.Context, text string) (chat.Message, bool)
	NewChat(ctx context.Context) error
	ToggleAutoplay() bool
	Autoplay() bool
	Speak(index int) error
	SessionID() string
}

// Overlay is the quick fact overlay control.
type Overlay interface {
	Dismiss()
}

// Exporter writes the export documents of the newest answer and returns
// their paths.
type Exporter func(ctx context.Context) ([]string, error)

// Results of commands.
type (
	initDoneMsg    struct{ err error }
	sendDoneMsg    struct{ ok bool }
	newChatDoneMsg struct{ err error }
	speakDoneMsg   struct{ err error }
	exportDoneMsg  struct {
		paths []string
		err   error
	}
	copyDoneMsg struct {
		path string
		err  error
	}
)

// Option configures a [Model].
type Option func(*Model)

// WithOverlay sets the control used to dismiss the quick fact overlay.
func WithOverlay(o Overlay) Option {
	return func(m *Model) { m.overlay = o }
}

// WithExporter enables the export key.
func WithExporter(e Exporter) Option {
	return func(m *Model) { m.export = e }
}

// WithCopyDir sets where copied messages are written. Defaults to ".".
func WithCopyDir(dir string) Option {
	return func(m *Model) { m.copyDir = dir }
}

// WithSuggestions replaces [DefaultSuggestions].
func WithSuggestions(s []string) Option {
	return func(m *Model) { m.suggestions = s }
}

// WithMarkdownStyle selects the glamour style used for bot messages
// ("auto", "dark", "light", "notty", ...). Defaults to "auto".
func WithMarkdownStyle(style string) Option {
	return func(m *Model) { m.style = style }
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	conv    Conversation
	bridge  *Bridge
	overlay Overlay
	export  Exporter
	copyDir string
	now     func() time.Time
	style   string

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	progress progress.Model
	renderer *glamour.TermRenderer

	messages    []chat.Message
	rendered    map[int]string
	units       []insight.Unit
	playing     map[string]playback.State
	frame       quickfact.Frame
	typing      bool
	autoplay    bool
	selected    int
	suggestions []string
	chip        int
	status      string

	width, height int
	sideWidth     int
}

// New creates the model. Notifications for it must be published on bridge.
func New(ctx context.Context, conv Conversation, bridge *Bridge, opts ...Option) Model {
	keys := defaultKeys()

	ta := textarea.New()
	ta.Placeholder = "Ask about a company, a market or a competitor..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = headerStyle

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	m := Model{
		ctx:         ctx,
		conv:        conv,
		bridge:      bridge,
		copyDir:     ".",
		now:         time.Now,
		style:       "auto",
		keys:        keys,
		help:        help.New(),
		viewport:    vp,
		input:       ta,
		spinner:     sp,
		progress:    progress.New(progress.WithSolidFill(string(accent)), progress.WithoutPercentage()),
		rendered:    make(map[int]string),
		playing:     make(map[string]playback.State),
		selected:    -1,
		suggestions: DefaultSuggestions,
		autoplay:    conv.Autoplay(),
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Run starts the program on the alternate screen and blocks until the user
// quits or ctx is cancelled. It closes m's bridge on return.
func Run(ctx context.Context, m Model) error {
	defer m.bridge.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Init restores the previous conversation and starts listening for
// notifications.
func (m Model) Init() tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.bridge.wait(),
		func() tea.Msg { return initDoneMsg{err: conv.Initialize(ctx)} },
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case appendedMsg:
		m.setMessage(msg.index, msg.msg)
		if msg.msg.IsBot() && (!msg.replay || m.selected < 0 || msg.index > m.selected) {
			m.selected = msg.index
		}
		m.refresh(true)
		return m, m.bridge.wait()

	case typingMsg:
		m.typing = bool(msg)
		m.refresh(false)
		return m, m.bridge.wait()

	case panelMsg:
		m.units = msg
		m.refresh(false)
		return m, m.bridge.wait()

	case resetMsg:
		m.messages = nil
		m.units = nil
		m.selected = -1
		m.chip = 0
		clear(m.rendered)
		clear(m.playing)
		m.refresh(true)
		return m, m.bridge.wait()

	case playbackMsg:
		if msg.state == playback.Idle {
			delete(m.playing, msg.owner)
		} else {
			m.playing[msg.owner] = msg.state
		}
		m.refresh(true)
		return m, m.bridge.wait()

	case factMsg:
		wasVisible := m.frame.Visible
		m.frame = quickfact.Frame(msg)
		if wasVisible != m.frame.Visible {
			m.refresh(false)
		}
		return m, m.bridge.wait()

	case initDoneMsg:
		if msg.err != nil {
			slog.Warn("tui: restoring conversation failed", "err", msg.err)
			m.status = "Could not restore the previous conversation."
		}
		return m, nil

	case sendDoneMsg:
		return m, nil

	case newChatDoneMsg:
		if msg.err != nil {
			m.status = "New chat failed: " + msg.err.Error()
		} else {
			m.status = "Started a new chat."
		}
		return m, nil

	case speakDoneMsg:
		switch {
		case errors.Is(msg.err, playback.ErrUnsupported):
			m.status = "Speech is not supported in this environment."
		case msg.err != nil:
			m.status = "Playback failed: " + msg.err.Error()
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported " + strings.Join(msg.paths, ", ")
		}
		return m, nil

	case copyDoneMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Copied to " + msg.path
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx, conv := m.ctx, m.conv

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" && len(m.messages) == 0 && len(m.suggestions) > 0 {
			text = m.suggestions[m.chip]
		}
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		return m, func() tea.Msg {
			_, ok := conv.Send(ctx, text)
			return sendDoneMsg{ok: ok}
		}

	case key.Matches(msg, m.keys.Suggestion):
		if len(m.messages) == 0 && len(m.suggestions) > 0 {
			m.chip = (m.chip + 1) % len(m.suggestions)
			m.refresh(true)
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.status = ""
		return m, func() tea.Msg { return newChatDoneMsg{err: conv.NewChat(ctx)} }

	case key.Matches(msg, m.keys.Autoplay):
		m.autoplay = conv.ToggleAutoplay()
		if m.autoplay {
			m.status = "Autoplay on."
		} else {
			m.status = "Autoplay off."
		}
		return m, nil

	case key.Matches(msg, m.keys.Speak):
		if m.selected < 0 {
			m.status = "There is no answer to listen to yet."
			return m, nil
		}
		idx := m.selected
		return m, func() tea.Msg { return speakDoneMsg{err: conv.Speak(idx)} }

	case key.Matches(msg, m.keys.Prev):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.selected < 0 {
			m.status = "There is no answer to copy yet."
			return m, nil
		}
		doc := export.Document{
			Name:    fmt.Sprintf("aura-message-%d.md", m.now().UnixMilli()),
			Content: m.messages[m.selected].Text,
		}
		dir := m.copyDir
		return m, func() tea.Msg {
			path, err := export.Write(dir, doc)
			return copyDoneMsg{path: path, err: err}
		}

	case key.Matches(msg, m.keys.Export):
		if m.export == nil {
			m.status = "Export is not available."
			return m, nil
		}
		exp := m.export
		return m, func() tea.Msg {
			paths, err := exp(ctx)
			return exportDoneMsg{paths: paths, err: err}
		}

	case key.Matches(msg, m.keys.Dismiss):
		if !m.frame.Visible || m.overlay == nil {
			return m, nil
		}
		ov := m.overlay
		return m, func() tea.Msg {
			ov.Dismiss()
			return nil
		}

	case key.Matches(msg, m.keys.Scroll):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// setMessage places msg at index, growing the transcript as needed.
func (m *Model) setMessage(index int, msg chat.Message) {
	if index < 0 {
		return
	}
	for len(m.messages) <= index {
		m.messages = append(m.messages, chat.Message{})
	}
	m.messages[index] = msg
	delete(m.rendered, index)
}

// moveSelection selects the previous (dir < 0) or next bot message.
func (m *Model) moveSelection(dir int) {
	for i := m.selected + dir; i >= 0 && i < len(m.messages); i += dir {
		if m.messages[i].IsBot() {
			m.selected = i
			m.refresh(true)
			return
		}
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.sideWidth = 0
	if width >= 90 {
		m.sideWidth = min(max(width/3, 30), 48)
	}
	chatWidth := width - m.sideWidth

	m.input.SetWidth(chatWidth - inputStyle.GetHorizontalFrameSize())
	m.help.Width = width
	m.progress.Width = max(chatWidth-factStyle.GetHorizontalFrameSize()-2, 10)
	m.viewport.Width = chatWidth

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(m.style),
		glamour.WithWordWrap(max(chatWidth-6, 20)),
	)
	if err != nil {
		slog.Warn("tui: creating markdown renderer failed", "err", err)
		r = nil
	}
	m.renderer = r
	clear(m.rendered)
	m.refresh(true)
}
