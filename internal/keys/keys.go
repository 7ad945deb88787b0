// Package keys defines the keybindings of the interactive progress view.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings available while a sync is running.
type KeyMap struct {
	// Cancel stops the run. Feeds already in flight finish their current
	// entry and report as interrupted.
	Cancel key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "cancel sync"),
		),
	}
}

// ShortHelp returns the keybindings shown under the progress bars.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel}
}

// FullHelp returns all keybindings grouped by category.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Cancel}}
}
