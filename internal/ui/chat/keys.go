// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the single-page chat view: sidebar with
// projects and threads on the left, the active transcript and input on
// the right.
package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Submit       key.Binding
	Cancel       key.Binding
	Quit         key.Binding
	ToggleFocus  key.Binding
	NewThread    key.Binding
	NewProject   key.Binding
	Rename       key.Binding
	Delete       key.Binding
	Upload       key.Binding
	CycleModel   key.Binding
	DeepResearch key.Binding
	Refresh      key.Binding
	Account      key.Binding
	Help         key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat
// interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "scroll / previous item"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "scroll / next item"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send / open"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close dialog"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		ToggleFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "switch focus"),
		),
		NewThread: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new thread"),
		),
		NewProject: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "new project"),
		),
		Rename: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "rename selected"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete selected"),
		),
		Upload: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("C-u", "upload file"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("C-j", "cycle model"),
		),
		DeepResearch: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "toggle deep research"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "refresh projects"),
		),
		Account: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "edit account"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("C-h", "toggle help"),
		),
	}
}

// ShortHelp returns the key bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.ToggleFocus, k.NewThread, k.CycleModel, k.Quit}
}

// FullHelp returns the key bindings shown in the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Submit, k.ToggleFocus, k.Cancel, k.Quit},
		{k.NewThread, k.NewProject, k.Rename, k.Delete},
		{k.Upload, k.CycleModel, k.DeepResearch, k.Refresh},
		{k.Account, k.Help},
	}
}
