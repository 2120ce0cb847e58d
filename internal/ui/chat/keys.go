// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the chat window.
type KeyMap struct {
	Send        key.Binding
	CycleModel  key.Binding
	ToggleParam key.Binding
	ApplyParams key.Binding
	ResetParams key.Binding
	Clear       key.Binding
	Export      key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Dismiss     key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "next model"),
		),
		ToggleParam: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "parameters"),
		),
		ApplyParams: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "apply"),
		),
		ResetParams: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "reset"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss notice"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.CycleModel, k.ToggleParam, k.Clear, k.Export, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.CycleModel, k.Clear, k.Export},
		{k.ToggleParam, k.ApplyParams, k.ResetParams},
		{k.PageUp, k.PageDown, k.Dismiss, k.Quit},
	}
}

// ParamsHelp lists the bindings active while the parameter editor is open.
func (k KeyMap) ParamsHelp() []key.Binding {
	return []key.Binding{k.ApplyParams, k.ResetParams, k.ToggleParam, k.Dismiss, k.Quit}
}
