// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/fininsight/finchat/internal/backend"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/ui/styles"
	"github.com/fininsight/finchat/internal/util"
)

// Layout constants.
const (
	sidebarWidth = 28
	headerRows   = 1
	statusRows   = 1
	inputRows    = 2
	minBodyRows  = 3
)

// =============================================================================
// LAYOUT
// =============================================================================

// resize recomputes component dimensions for the new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	body := height - headerRows - statusRows - inputRows
	if body < minBodyRows {
		body = minBodyRows
	}

	tw := m.transcriptWidth()
	m.viewport.Width = tw
	m.viewport.Height = body
	m.input.Width = width - 6

	wrap := tw - 6
	if wrap < 20 {
		wrap = 20
	}
	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	); err == nil {
		m.renderer = r
	}
}

// transcriptWidth returns the width available to the transcript pane.
func (m Model) transcriptWidth() int {
	if m.theme.GetLayoutMode() == styles.LayoutWide {
		return m.width - sidebarWidth - 2
	}
	return m.width - 2
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshViewport re-renders the active transcript into the viewport
// and scrolls to the newest message.
func (m *Model) refreshViewport() {
	th := m.registry.ActiveThread()
	if th == nil {
		m.viewport.SetContent(m.theme.SidebarEmpty.Render("No conversation yet. Type a message to start one."))
		return
	}

	var b strings.Builder
	var lastDay string
	for i, msg := range th.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		if day := msg.Timestamp.Format("Jan 2, 2006"); day != lastDay {
			lastDay = day
			sep := m.theme.Timestamp.Render("── " + day + " ──")
			b.WriteString(lipgloss.PlaceHorizontal(m.transcriptWidth(), lipgloss.Center, sep))
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// renderMessage renders one message as a bubble with a caption line.
func (m Model) renderMessage(msg *model.Message) string {
	tw := m.transcriptWidth()
	maxBubble := tw * 3 / 4
	if maxBubble < 20 {
		maxBubble = 20
	}
	stamp := msg.Timestamp.Format("15:04")

	switch msg.Role {
	case model.RoleUser:
		caption := m.theme.Timestamp.Render("You · " + stamp)
		bubble := m.theme.UserBubble.MaxWidth(maxBubble).Render(msg.Content)
		block := lipgloss.JoinVertical(lipgloss.Right, caption, bubble)
		return lipgloss.PlaceHorizontal(tw, lipgloss.Right, block)

	case model.RoleSystem:
		bubble := m.theme.SystemBubble.MaxWidth(maxBubble).Render(msg.Content)
		return lipgloss.PlaceHorizontal(tw, lipgloss.Center, bubble)
	}

	caption := m.theme.Timestamp.Render("Assistant · " + stamp)
	switch msg.Status {
	case model.StatusPending:
		bubble := m.theme.PendingBubble.MaxWidth(maxBubble).Render(m.spinner.View() + " thinking...")
		return lipgloss.JoinVertical(lipgloss.Left, caption, bubble)
	case model.StatusFailed:
		bubble := m.theme.FailedBubble.MaxWidth(maxBubble).Render(msg.Content)
		return lipgloss.JoinVertical(lipgloss.Left, caption, bubble)
	}

	content := msg.Content
	if m.markdown && m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	bubble := m.theme.AssistantBubble.MaxWidth(maxBubble).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, caption, bubble)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.dialog != dialogNone {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.dialogView())
	}
	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.helpView())
	}

	header := m.headerView()

	var body string
	if m.theme.GetLayoutMode() == styles.LayoutWide {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.viewport.View())
	} else {
		body = m.viewport.View()
	}

	input := m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
	status := m.statusView()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)
}

// headerView renders the top bar: brand, model selector, research
// flag, signed-in account.
func (m Model) headerView() string {
	brand := m.theme.HeaderBrand.Render("finchat")
	modelName := m.theme.HeaderModel.Render(backend.ModelDisplayName(m.currentModel()))

	parts := []string{brand, " ", modelName}
	if m.deepResearch {
		parts = append(parts, "  ", m.theme.Research.Render("[research]"))
	}
	left := lipgloss.JoinHorizontal(lipgloss.Center, parts...)

	right := ""
	if m.account.IsAuthenticated() {
		right = m.theme.HeaderModel.Render(m.account.Email)
	} else {
		right = m.theme.StatusError.Render("signed out")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// sidebarView renders the project and thread lists.
func (m Model) sidebarView() string {
	var b strings.Builder
	entries := m.sidebarEntries()

	b.WriteString(m.theme.SidebarHeading.Render("PROJECTS"))
	b.WriteString("\n")
	wroteProject := false
	idx := 0
	for ; idx < len(entries) && entries[idx].kind == entryProject; idx++ {
		b.WriteString(m.sidebarRow(entries[idx], idx))
		b.WriteString("\n")
		wroteProject = true
	}
	if !wroteProject {
		b.WriteString(m.theme.SidebarEmpty.Render("none yet"))
		b.WriteString("\n")
	}

	b.WriteString(m.theme.SidebarSeparator.Render(strings.Repeat("─", sidebarWidth-4)))
	b.WriteString("\n")
	b.WriteString(m.theme.SidebarHeading.Render("THREADS"))
	b.WriteString("\n")
	wroteThread := false
	for ; idx < len(entries); idx++ {
		b.WriteString(m.sidebarRow(entries[idx], idx))
		b.WriteString("\n")
		wroteThread = true
	}
	if !wroteThread {
		b.WriteString(m.theme.SidebarEmpty.Render("none yet"))
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(b.String())
}

// sidebarRow renders one entry, highlighted when the sidebar has focus
// and the cursor is on it.
func (m Model) sidebarRow(e sidebarEntry, idx int) string {
	title := util.TruncateWidth(e.title, sidebarWidth-6)
	if m.focus == focusSidebar && idx == m.cursor {
		return m.theme.SidebarSelected.Render(title)
	}
	return m.theme.SidebarItem.Render(title)
}

// statusView renders the bottom line: a transient status message when
// one is active, otherwise the short key help.
func (m Model) statusView() string {
	if m.statusMsg != "" {
		return m.theme.StatusBar.Width(m.width).Render(m.statusMsg)
	}

	var parts []string
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		parts = append(parts,
			m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

// =============================================================================
// OVERLAYS
// =============================================================================

// dialogView renders the open modal dialog.
func (m Model) dialogView() string {
	var b strings.Builder

	switch m.dialog {
	case dialogNewProject:
		b.WriteString(m.theme.DialogTitle.Render("New Project"))
		b.WriteString("\n\n")
		labels := []string{"Name", "Description", "Purpose"}
		for i, ti := range m.dialogInputs {
			b.WriteString(m.theme.DialogLabel.Render(labels[i]))
			b.WriteString("\n")
			b.WriteString(ti.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.theme.DialogHint.Render("Tab next field · Enter create · Esc cancel"))

	case dialogRenameProject, dialogRenameThread:
		title := "Rename Project"
		if m.dialog == dialogRenameThread {
			title = "Rename Thread"
		}
		b.WriteString(m.theme.DialogTitle.Render(title))
		b.WriteString("\n\n")
		b.WriteString(m.dialogInputs[0].View())
		b.WriteString("\n\n")
		b.WriteString(m.theme.DialogHint.Render("Enter rename · Esc cancel"))

	case dialogDeleteProject, dialogDeleteThread:
		what := "project"
		if m.dialog == dialogDeleteThread {
			what = "thread"
		}
		b.WriteString(m.theme.DialogTitle.Render("Delete"))
		b.WriteString("\n\n")
		b.WriteString(m.theme.DialogDanger.Render(
			fmt.Sprintf("Delete this %s? This cannot be undone.", what)))
		b.WriteString("\n\n")
		b.WriteString(m.theme.DialogHint.Render("Enter delete · Esc cancel"))

	case dialogUpload:
		b.WriteString(m.theme.DialogTitle.Render("Upload File"))
		b.WriteString("\n\n")
		b.WriteString(m.dialogInputs[0].View())
		b.WriteString("\n\n")
		b.WriteString(m.theme.DialogHint.Render("Enter upload · Esc cancel"))

	case dialogNotice:
		b.WriteString(m.theme.DialogTitle.Render("Upload"))
		b.WriteString("\n\n")
		b.WriteString(m.noticeText)
		b.WriteString("\n\n")
		b.WriteString(m.theme.DialogHint.Render("Enter or Esc to dismiss"))

	case dialogAccount:
		b.WriteString(m.theme.DialogTitle.Render("Account"))
		b.WriteString("\n\n")
		b.WriteString(m.theme.DialogLabel.Render("Email"))
		b.WriteString("\n")
		b.WriteString(m.account.Email)
		b.WriteString("\n")
		labels := []string{"Display name", "Default guideline"}
		for i, ti := range m.dialogInputs {
			b.WriteString(m.theme.DialogLabel.Render(labels[i]))
			b.WriteString("\n")
			b.WriteString(ti.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.theme.DialogHint.Render("Tab next field · Enter save · Esc cancel"))
	}

	return m.theme.DialogBox.Render(b.String())
}

// helpView renders the full shortcut reference.
func (m Model) helpView() string {
	var b strings.Builder
	b.WriteString(m.theme.DialogTitle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, group := range m.keyMap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("%s  %s\n",
				m.theme.ShortcutKey.Render(fmt.Sprintf("%-6s", h.Key)),
				m.theme.ShortcutDesc.Render(h.Desc)))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.DialogHint.Render("C-h to close"))
	return m.theme.DialogBox.Render(b.String())
}
