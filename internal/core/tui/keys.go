package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap defines key bindings for the TUI
type keyMap struct {
	Up        key
	Down      key
	Top       key
	Bottom    key
	Detail    key
	Filter    key
	Reload    key
	Quit      key
	ForceQuit key
}

// key represents a key binding with help text
type key struct {
	tea.Key
	help string
}

// shortHelp returns key bindings for short help view
func (k keyMap) shortHelp() []key {
	return []key{k.Detail, k.Filter, k.Reload, k.Quit}
}

// fullHelp returns all key bindings for full help view
func (k keyMap) fullHelp() []key {
	return []key{
		k.Up, k.Down,
		k.Top, k.Bottom,
		k.Detail, k.Filter, k.Reload,
		k.Quit, k.ForceQuit,
	}
}

// Help generates the help view
func (k keyMap) Help() helpWrapper {
	return helpWrapper{
		keyMap: k,
	}
}

// helpWrapper wraps the keyMap for help display
type helpWrapper struct {
	keyMap keyMap
}

// String returns the help text
func (h helpWrapper) String() string {
	var s string
	for _, k := range h.keyMap.fullHelp() {
		if k.help != "" {
			s += k.help + " "
		}
	}
	return s
}

// View returns the short help line
func (h helpWrapper) View() string {
	var s string
	for _, k := range h.keyMap.shortHelp() {
		s += "[" + k.help + "] "
	}
	return s
}

// defaultKeyMap creates the default key bindings
func defaultKeyMap() keyMap {
	return keyMap{
		Up: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'k'}},
			help: "↑/k",
		},
		Down: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'j'}},
			help: "↓/j",
		},
		Top: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'g'}},
			help: "gg top",
		},
		Bottom: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'G'}},
			help: "G bottom",
		},
		Detail: key{
			Key:  tea.Key{Type: tea.KeyEnter},
			help: "enter details",
		},
		Filter: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'f'}},
			help: "f refusals only",
		},
		Reload: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'r'}},
			help: "r reload",
		},
		Quit: key{
			Key:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'q'}},
			help: "q quit",
		},
		ForceQuit: key{
			Key:  tea.Key{Type: tea.KeyEsc},
			help: "esc quit",
		},
	}
}
