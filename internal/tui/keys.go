package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the chat window bindings.
type KeyMap struct {
	Send     key.Binding
	Stop     key.Binding
	New      key.Binding
	Prev     key.Binding
	Next     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Stop:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		New:      key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		Prev:     key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+↑", "previous chat")),
		Next:     key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+↓", "next chat")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Send, k.Stop, k.New, k.Prev, k.Next, k.Quit}
}
