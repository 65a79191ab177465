package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/internal/orchestrator"
	"github.com/MrWong99/aura/internal/playback"
	"github.com/MrWong99/aura/internal/quickfact"
	"github.com/MrWong99/aura/pkg/chat"
)

type fakeConv struct {
	mu       sync.Mutex
	sent     []string
	spoken   []int
	newChats int
	autoplay bool
	initErr  error
	speakErr error
}

func (f *fakeConv) Initialize(context.Context) error { return f.initErr }

func (f *fakeConv) Send(_ context.Context, text string) (chat.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return chat.Message{Sender: chat.SenderBot, Text: "ok"}, true
}

func (f *fakeConv) NewChat(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newChats++
	return nil
}

func (f *fakeConv) ToggleAutoplay() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoplay = !f.autoplay
	return f.autoplay
}

func (f *fakeConv) Autoplay() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autoplay
}

func (f *fakeConv) Speak(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, index)
	return f.speakErr
}

func (f *fakeConv) SessionID() string { return "s-1" }

type fakeOverlay struct{ dismissed int }

func (o *fakeOverlay) Dismiss() { o.dismissed++ }

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestModel(t *testing.T, conv Conversation, opts ...Option) Model {
	t.Helper()
	opts = append([]Option{
		WithMarkdownStyle("notty"),
		WithClock(func() time.Time { return fixedNow }),
		WithCopyDir(t.TempDir()),
	}, opts...)
	m := New(context.Background(), conv, NewBridge(), opts...)
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

// withAnswer appends a question and a bot answer.
func withAnswer(t *testing.T, m Model) Model {
	t.Helper()
	m = update(t, m, appendedMsg{index: 0, msg: chat.Message{Sender: chat.SenderUser, Text: "How is Nvidia doing?"}})
	return update(t, m, appendedMsg{index: 1, msg: chat.Message{Sender: chat.SenderBot, Text: "Revenue grew **15%** last quarter."}})
}

func TestSend_SubmitsInput(t *testing.T) {
	conv := &fakeConv{}
	m := newTestModel(t, conv)
	m.input.SetValue("  Tell me about Nvidia  ")

	m, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("want a send command")
	}
	if got := cmd(); got != (sendDoneMsg{ok: true}) {
		t.Errorf("want sendDoneMsg{ok: true}, got %#v", got)
	}
	if len(conv.sent) != 1 || conv.sent[0] != "Tell me about Nvidia" {
		t.Errorf("want trimmed input sent once, got %q", conv.sent)
	}
	if m.input.Value() != "" {
		t.Errorf("want input cleared, got %q", m.input.Value())
	}
}

func TestSend_SuggestionOnEmptyScreen(t *testing.T) {
	conv := &fakeConv{}
	m := newTestModel(t, conv, WithSuggestions([]string{"first", "second"}))

	if !strings.Contains(m.View(), "first") {
		t.Error("want suggestions on the start screen")
	}
	m, _ = press(t, m, tea.KeyTab)
	_, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("want a send command")
	}
	cmd()
	if len(conv.sent) != 1 || conv.sent[0] != "second" {
		t.Errorf("want highlighted suggestion sent, got %q", conv.sent)
	}
}

func TestSend_BlankInputAfterConversationStarted(t *testing.T) {
	m := withAnswer(t, newTestModel(t, &fakeConv{}))
	if _, cmd := press(t, m, tea.KeyEnter); cmd != nil {
		t.Error("want no command for blank input")
	}
}

func TestNotifications_Transcript(t *testing.T) {
	m := withAnswer(t, newTestModel(t, &fakeConv{}))

	if len(m.messages) != 2 {
		t.Fatalf("want 2 messages, got %d", len(m.messages))
	}
	if m.selected != 1 {
		t.Errorf("want newest answer selected, got %d", m.selected)
	}
	view := m.View()
	for _, want := range []string{"How is Nvidia doing?", "Revenue grew", "[Listen]", "session s-1"} {
		if !strings.Contains(view, want) {
			t.Errorf("want view to contain %q", want)
		}
	}

	m = update(t, m, playbackMsg{owner: orchestrator.OwnerKey(1), state: playback.Speaking})
	if !strings.Contains(m.View(), "[Pause]") {
		t.Error("want pause control while speaking")
	}
	m = update(t, m, playbackMsg{owner: orchestrator.OwnerKey(1), state: playback.Idle})
	if len(m.playing) != 0 {
		t.Errorf("want idle owners forgotten, got %v", m.playing)
	}
}

func TestNotifications_ReplayKeepsNewestSelected(t *testing.T) {
	m := newTestModel(t, &fakeConv{})
	m = update(t, m, appendedMsg{index: 1, msg: chat.Message{Sender: chat.SenderBot, Text: "second"}, replay: true})
	m = update(t, m, appendedMsg{index: 0, msg: chat.Message{Sender: chat.SenderBot, Text: "first"}, replay: true})
	if m.selected != 1 {
		t.Errorf("want selection on the newest replayed answer, got %d", m.selected)
	}
}

func TestNotifications_TypingPanelAndReset(t *testing.T) {
	m := withAnswer(t, newTestModel(t, &fakeConv{}))

	m = update(t, m, typingMsg(true))
	if !strings.Contains(m.View(), "Researching...") {
		t.Error("want typing indicator")
	}
	m = update(t, m, typingMsg(false))

	m = update(t, m, panelMsg{{Kind: insight.KindList, Title: "Key Topics", Items: []string{"Market"}}})
	if !strings.Contains(m.View(), "Key Topics") {
		t.Error("want insight card in the side panel")
	}

	m = update(t, m, resetMsg{})
	if len(m.messages) != 0 || len(m.units) != 0 || m.selected != -1 {
		t.Errorf("want cleared state, got %d messages, %d units, selected %d", len(m.messages), len(m.units), m.selected)
	}
	if !strings.Contains(m.View(), DefaultSuggestions[0]) {
		t.Error("want start screen after reset")
	}
}

func TestFactOverlay(t *testing.T) {
	ov := &fakeOverlay{}
	m := newTestModel(t, &fakeConv{}, WithOverlay(ov))

	if _, cmd := press(t, m, tea.KeyEsc); cmd != nil {
		t.Error("want esc ignored without a visible fact")
	}

	m = update(t, m, factMsg{Visible: true, Fact: "Honey never spoils.", Index: 1, Total: 3, Progress: 50})
	view := m.View()
	if !strings.Contains(view, "Honey never spoils.") || !strings.Contains(view, "2/3") {
		t.Errorf("want fact and position in view, got:\n%s", view)
	}

	_, cmd := press(t, m, tea.KeyEsc)
	if cmd == nil {
		t.Fatal("want a dismiss command")
	}
	cmd()
	if ov.dismissed != 1 {
		t.Errorf("want 1 dismiss, got %d", ov.dismissed)
	}

	m = update(t, m, factMsg(quickfact.Frame{}))
	if strings.Contains(m.View(), "Honey never spoils.") {
		t.Error("want overlay hidden")
	}
}

func TestSpeak(t *testing.T) {
	conv := &fakeConv{}
	m := newTestModel(t, conv)

	m, cmd := press(t, m, tea.KeyCtrlS)
	if cmd != nil || !strings.Contains(m.status, "no answer") {
		t.Errorf("want status without command, got status %q", m.status)
	}

	m = withAnswer(t, m)
	_, cmd = press(t, m, tea.KeyCtrlS)
	if cmd == nil {
		t.Fatal("want a speak command")
	}
	cmd()
	if len(conv.spoken) != 1 || conv.spoken[0] != 1 {
		t.Errorf("want message 1 spoken, got %v", conv.spoken)
	}

	m = update(t, m, speakDoneMsg{err: playback.ErrUnsupported})
	if !strings.Contains(m.status, "not supported") {
		t.Errorf("want unsupported status, got %q", m.status)
	}
}

func TestSelection_SkipsUserMessages(t *testing.T) {
	m := withAnswer(t, newTestModel(t, &fakeConv{}))
	m = update(t, m, appendedMsg{index: 2, msg: chat.Message{Sender: chat.SenderUser, Text: "And AMD?"}})
	m = update(t, m, appendedMsg{index: 3, msg: chat.Message{Sender: chat.SenderBot, Text: "AMD grew too."}})

	m, _ = press(t, m, tea.KeyCtrlUp)
	if m.selected != 1 {
		t.Errorf("want previous answer selected, got %d", m.selected)
	}
	m, _ = press(t, m, tea.KeyCtrlUp)
	if m.selected != 1 {
		t.Errorf("want selection kept at the first answer, got %d", m.selected)
	}
	m, _ = press(t, m, tea.KeyCtrlDown)
	if m.selected != 3 {
		t.Errorf("want next answer selected, got %d", m.selected)
	}
}

func TestAutoplayToggle(t *testing.T) {
	conv := &fakeConv{autoplay: true}
	m := newTestModel(t, conv)
	if !strings.Contains(m.View(), "autoplay on") {
		t.Error("want initial autoplay shown")
	}
	m, _ = press(t, m, tea.KeyCtrlA)
	if m.autoplay || conv.autoplay {
		t.Error("want autoplay off")
	}
	if !strings.Contains(m.View(), "autoplay off") {
		t.Error("want autoplay off in header")
	}
}

func TestNewChat(t *testing.T) {
	conv := &fakeConv{}
	m := withAnswer(t, newTestModel(t, conv))
	_, cmd := press(t, m, tea.KeyCtrlN)
	if cmd == nil {
		t.Fatal("want a new chat command")
	}
	if got := cmd(); got != (newChatDoneMsg{}) {
		t.Errorf("want newChatDoneMsg without error, got %#v", got)
	}
	if conv.newChats != 1 {
		t.Errorf("want 1 new chat, got %d", conv.newChats)
	}
}

func TestCopy_WritesRawText(t *testing.T) {
	dir := t.TempDir()
	m := withAnswer(t, newTestModel(t, &fakeConv{}, WithCopyDir(dir)))

	_, cmd := press(t, m, tea.KeyCtrlY)
	if cmd == nil {
		t.Fatal("want a copy command")
	}
	done, ok := cmd().(copyDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("want successful copy, got %#v", done)
	}
	if want := filepath.Join(dir, "aura-message-1741944600000.md"); done.path != want {
		t.Errorf("want path %q, got %q", want, done.path)
	}
	b, err := os.ReadFile(done.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "Revenue grew **15%** last quarter." {
		t.Errorf("want raw Markdown, got %q", b)
	}
}

func TestExport(t *testing.T) {
	m := newTestModel(t, &fakeConv{})
	m, cmd := press(t, m, tea.KeyCtrlE)
	if cmd != nil || m.status != "Export is not available." {
		t.Errorf("want unavailable status, got %q", m.status)
	}

	m = newTestModel(t, &fakeConv{}, WithExporter(func(context.Context) ([]string, error) {
		return []string{"a.md", "b.txt"}, nil
	}))
	_, cmd = press(t, m, tea.KeyCtrlE)
	if cmd == nil {
		t.Fatal("want an export command")
	}
	m = update(t, m, cmd())
	if m.status != "Exported a.md, b.txt" {
		t.Errorf("want export paths in status, got %q", m.status)
	}

	m = update(t, m, exportDoneMsg{err: errors.New("disk full")})
	if m.status != "Export failed: disk full" {
		t.Errorf("want export failure in status, got %q", m.status)
	}
}

func TestQuit(t *testing.T) {
	_, cmd := press(t, newTestModel(t, &fakeConv{}), tea.KeyCtrlC)
	if cmd == nil {
		t.Fatal("want quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("want tea.QuitMsg")
	}
}

func TestInit_ReportsRestoreFailure(t *testing.T) {
	m := newTestModel(t, &fakeConv{initErr: errors.New("corrupt")})
	m = update(t, m, initDoneMsg{err: errors.New("corrupt")})
	if !strings.Contains(m.status, "Could not restore") {
		t.Errorf("want restore failure status, got %q", m.status)
	}
}
