// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package login provides the sign-in screen shown before the chat view
// when no stored session is available.
package login

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fininsight/finchat/internal/auth"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// CompletedMsg reports the outcome of the sign-in flow. Skipped is true
// when the user chose to continue without signing in.
type CompletedMsg struct {
	Account *model.Account
	Err     error
	Skipped bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the sign-in screen.
type Model struct {
	theme  *styles.Theme
	flow   *auth.Flow
	width  int
	height int

	spinner spinner.Model
	waiting bool
	errMsg  string
}

// New creates the login screen.
func New(theme *styles.Theme, flow *auth.Flow) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.LoginSpinner

	return Model{
		theme:   theme,
		flow:    flow,
		spinner: sp,
	}
}

// Init is a no-op; the flow starts on Enter.
func (m Model) Init() tea.Cmd {
	return nil
}

// startFlow runs the browser sign-in in the background.
func (m Model) startFlow() tea.Cmd {
	flow := m.flow
	return func() tea.Msg {
		account, err := flow.Run(context.Background())
		return CompletedMsg{Account: account, Err: err}
	}
}

// Update handles key presses and the flow result.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.waiting {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "enter":
			m.waiting = true
			m.errMsg = ""
			return m, tea.Batch(m.startFlow(), m.spinner.Tick)
		case "s":
			return m, func() tea.Msg { return CompletedMsg{Skipped: true} }
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case CompletedMsg:
		// The parent model consumes this; if it reaches us the flow
		// failed and we return to the idle prompt.
		m.waiting = false
		if msg.Err != nil {
			m.errMsg = msg.Err.Error()
		}
		return m, nil
	}

	return m, nil
}

// View renders the sign-in box.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.LoginLogo.Render("finchat"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.LoginInfo.Render("Chat with your financial research assistant."))
	b.WriteString("\n\n")

	if m.waiting {
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.LoginInfo.Render(" Waiting for the browser sign-in to finish..."))
		b.WriteString("\n\n")
		b.WriteString(m.theme.LoginInfo.Render("Complete the Google sign-in in your browser."))
	} else {
		b.WriteString(m.theme.LoginKey.Render("Enter"))
		b.WriteString(m.theme.LoginInfo.Render("  sign in with Google"))
		b.WriteString("\n")
		b.WriteString(m.theme.LoginKey.Render("s"))
		b.WriteString(m.theme.LoginInfo.Render("      continue without signing in"))
		b.WriteString("\n")
		b.WriteString(m.theme.LoginKey.Render("q"))
		b.WriteString(m.theme.LoginInfo.Render("      quit"))
	}

	if m.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(m.theme.StatusError.Render("Sign-in failed: " + m.errMsg))
	}

	box := m.theme.LoginBox.Render(b.String())
	if m.width == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
