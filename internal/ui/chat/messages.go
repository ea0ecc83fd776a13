// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fininsight/finchat/internal/backend"
)

// =============================================================================
// UI-LOCAL MESSAGES
// =============================================================================

// statusClearMsg clears a transient status line after its display
// window expires.
type statusClearMsg struct{ seq int }

// savedMsg reports a background transcript save.
type savedMsg struct{ err error }

// statusDisplayDuration is how long transient status lines stay on
// screen.
const statusDisplayDuration = 4 * time.Second

// clearStatusCmd schedules the status line to clear. The sequence
// number guards against an older timer wiping a newer status.
func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(statusDisplayDuration, func(time.Time) tea.Msg {
		return statusClearMsg{seq: seq}
	})
}

// modelNames returns the selectable model names in display order.
func modelNames() []string {
	return backend.ModelNames
}
