package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keyboard shortcuts of the take view. It implements
// help.KeyMap.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Next   key.Binding
	Prev   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Choose: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter/space", "select"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "ctrl+n"),
		key.WithHelp("tab", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "ctrl+p"),
		key.WithHelp("shift+tab", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Choose, k.Next, k.Prev, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Choose}, {k.Next, k.Prev, k.Quit}}
}

// textKeys is the reduced set used while a free text field has focus, so
// letters and space reach the input.
type textKeys struct {
	keyMap
}

func (k textKeys) ShortHelp() []key.Binding {
	submit := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next"))
	return []key.Binding{submit, k.Next, k.Prev, k.Quit}
}
