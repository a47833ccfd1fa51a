package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts of the run view
type KeyMap struct {
	Quit       key.Binding
	ToggleLogs key.Binding
	ToggleDbg  key.Binding
	Up         key.Binding
	Down       key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "toggle logs"),
		),
		ToggleDbg: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "debug lines"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// ShortHelp returns key help text
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleLogs, k.ToggleDbg, k.Up, k.Down, k.Quit}
}

// FullHelp returns extended help text
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
