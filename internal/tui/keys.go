package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send       key.Binding
	Newline    key.Binding
	NewChat    key.Binding
	Autoplay   key.Binding
	Speak      key.Binding
	Prev       key.Binding
	Next       key.Binding
	Copy       key.Binding
	Export     key.Binding
	Dismiss    key.Binding
	Suggestion key.Binding
	Scroll     key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Newline:    key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"), key.WithHelp("alt+enter", "newline")),
		NewChat:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		Autoplay:   key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "autoplay")),
		Speak:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "listen")),
		Prev:       key.NewBinding(key.WithKeys("ctrl+up", "alt+up"), key.WithHelp("ctrl+↑", "prev answer")),
		Next:       key.NewBinding(key.WithKeys("ctrl+down", "alt+down"), key.WithHelp("ctrl+↓", "next answer")),
		Copy:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy")),
		Export:     key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "export")),
		Dismiss:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "hide fact")),
		Suggestion: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "suggestion")),
		Scroll:     key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewChat, k.Autoplay, k.Speak, k.Export, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.Suggestion, k.Scroll},
		{k.Speak, k.Prev, k.Next, k.Autoplay},
		{k.Copy, k.Export, k.NewChat, k.Dismiss, k.Quit},
	}
}
