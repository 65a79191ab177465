package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#6c5ce7")
	muted  = lipgloss.Color("#8b8fa3")
	warn   = lipgloss.Color("#e17055")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	userStyle   = lipgloss.NewStyle().Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(accent).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(warn)

	selectedStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(accent).
			PaddingLeft(1)
	messageStyle = lipgloss.NewStyle().PaddingLeft(2)

	chipStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)
	activeChipStyle = chipStyle.BorderForeground(accent).Foreground(accent)

	factStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(accent).
			Padding(0, 1)
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted)
)
