package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/internal/orchestrator"
	"github.com/MrWong99/aura/internal/playback"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	chat := []string{m.header(), m.viewport.View()}
	if f := m.renderFact(); f != "" {
		chat = append(chat, f)
	}
	chat = append(chat, m.statusLine(), inputStyle.Render(m.input.View()))
	main := lipgloss.JoinVertical(lipgloss.Left, chat...)

	if m.sideWidth > 0 {
		side := lipgloss.NewStyle().
			Width(m.sideWidth).
			MaxHeight(lipgloss.Height(main)).
			Render(insight.Render(m.units, m.sideWidth-1))
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, side)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, m.help.View(m.keys))
}

// refresh recomputes the viewport height from the current chrome and, when
// content is set, re-renders the transcript into it.
func (m *Model) refresh(content bool) {
	if m.width == 0 {
		return
	}
	chrome := lipgloss.Height(m.header()) +
		lipgloss.Height(m.statusLine()) +
		m.input.Height() + inputStyle.GetVerticalFrameSize() +
		lipgloss.Height(m.help.View(m.keys))
	if f := m.renderFact(); f != "" {
		chrome += lipgloss.Height(f)
	}
	m.viewport.Height = max(m.height-chrome, 3)

	if !content {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript())
	if atBottom || len(m.messages) == 0 {
		m.viewport.GotoBottom()
	}
}

func (m Model) header() string {
	auto := "autoplay off"
	if m.autoplay {
		auto = "autoplay on"
	}
	parts := []string{headerStyle.Render("Aura"), mutedStyle.Render("research assistant"), mutedStyle.Render(auto)}
	if sid := m.conv.SessionID(); sid != "" {
		parts = append(parts, mutedStyle.Render("session "+sid))
	}
	return strings.Join(parts, mutedStyle.Render(" · "))
}

func (m Model) statusLine() string {
	if m.typing {
		return m.spinner.View() + " " + mutedStyle.Render("Researching...")
	}
	return statusStyle.Render(m.status)
}

func (m Model) renderFact() string {
	if !m.frame.Visible {
		return ""
	}
	w := m.width - m.sideWidth - factStyle.GetHorizontalFrameSize()
	head := headerStyle.Render("Quick fact") +
		mutedStyle.Render(fmt.Sprintf("  %d/%d  esc to hide", m.frame.Index+1, m.frame.Total))
	body := lipgloss.NewStyle().Width(w).Render(m.frame.Fact)
	bar := m.progress.ViewAs(m.frame.Progress / 100)
	return factStyle.Width(w + factStyle.GetHorizontalPadding()).Render(head + "\n" + body + "\n" + bar)
}

func (m *Model) transcript() string {
	if len(m.messages) == 0 {
		return m.welcome()
	}
	blocks := make([]string, 0, len(m.messages))
	for i, msg := range m.messages {
		if msg.Sender == "" {
			continue
		}
		var head, body string
		if msg.IsBot() {
			state := m.playing[orchestrator.OwnerKey(i)]
			head = botStyle.Render("Aura") + "  " + mutedStyle.Render("["+playback.Label(state)+"]")
			body = m.markdown(i, msg.Text)
		} else {
			head = userStyle.Render("You")
			body = lipgloss.NewStyle().Width(max(m.viewport.Width-4, 10)).Render(msg.Text)
		}
		block := head + "\n" + body
		if i == m.selected {
			blocks = append(blocks, selectedStyle.Render(block))
		} else {
			blocks = append(blocks, messageStyle.Render(block))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// markdown renders bot text, caching the result per transcript index.
func (m *Model) markdown(index int, text string) string {
	if out, ok := m.rendered[index]; ok {
		return out
	}
	out := text
	if m.renderer != nil {
		if r, err := m.renderer.Render(text); err == nil {
			out = strings.Trim(r, "\n")
		}
	}
	m.rendered[index] = out
	return out
}

func (m Model) welcome() string {
	lines := []string{
		headerStyle.Render("What would you like to research?"),
		mutedStyle.Render("Type a question, or press tab to pick a suggestion and enter to send it."),
		"",
	}
	for i, s := range m.suggestions {
		style := chipStyle
		if i == m.chip {
			style = activeChipStyle
		}
		lines = append(lines, style.Render(s))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}
