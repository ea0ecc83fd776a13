// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fininsight/finchat/internal/backend"
	"github.com/fininsight/finchat/internal/dispatch"
	"github.com/fininsight/finchat/internal/identity"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/session"
	"github.com/fininsight/finchat/internal/storage"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update routes messages to the appropriate handler.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.inflight == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd

	case session.TickMsg:
		return m, m.sessionMgr.HandleTick()

	case session.AutoSaveMsg:
		return m, m.saveActiveThread()

	case dispatch.SendResultMsg:
		return m.handleSendResult(msg)

	case dispatch.ProjectsLoadedMsg:
		if msg.Err != nil {
			return m, m.setStatus("Could not load projects: " + msg.Err.Error())
		}
		m.clampCursor()
		m.refreshViewport()
		if msg.NewUser {
			return m, m.setStatus("Welcome! Create your first project with C-p.")
		}
		return m, nil

	case dispatch.ProjectCreatedMsg:
		if msg.Err != nil {
			return m, m.setStatus("Could not create project: " + msg.Err.Error())
		}
		notice := msg.Ack
		if notice == "" {
			notice = "Project created: " + msg.Name
		}
		return m, tea.Batch(
			m.setStatus(notice),
			m.dispatcher.RefreshProjects(m.account.Email),
		)

	case dispatch.ProjectRenamedMsg:
		if msg.Err != nil {
			if msg.RolledBack {
				return m, m.setStatus("Rename rejected by backend; name restored.")
			}
			return m, m.setStatus("Could not rename project: " + msg.Err.Error())
		}
		return m, nil

	case dispatch.ProjectDeletedMsg:
		if msg.Err != nil {
			if msg.RolledBack {
				return m, m.setStatus("Delete rejected by backend; project restored.")
			}
			return m, m.setStatus("Could not delete project: " + msg.Err.Error())
		}
		m.clampCursor()
		m.refreshViewport()
		return m, m.setStatus("Project deleted.")

	case dispatch.ProjectHistoryMsg:
		if msg.Err != nil {
			return m, m.setStatus("Could not load project history: " + msg.Err.Error())
		}
		m.refreshViewport()
		return m, nil

	case dispatch.FileUploadedMsg:
		// Upload is fire-and-confirm: the result blocks until dismissed.
		if msg.Err != nil {
			m.openNotice("Upload failed: " + msg.Err.Error())
		} else {
			m.openNotice("Uploaded " + msg.Path + " to the project.")
		}
		return m, nil

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			return m, m.setStatus("Save failed: " + msg.err.Error())
		}
		m.sessionMgr.MarkClean()
		return m, nil
	}

	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Dialogs capture all input while open.
	if m.dialog != dialogNone {
		return m.handleDialogKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Sequence(m.saveActiveThread(), tea.Quit)

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleFocus):
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.CycleModel):
		m.modelIndex = (m.modelIndex + 1) % len(modelNames())
		return m, m.setStatus("Model: " + backend.ModelDisplayName(m.currentModel()))

	case key.Matches(msg, m.keyMap.DeepResearch):
		m.deepResearch = !m.deepResearch
		if m.deepResearch {
			return m, m.setStatus("Deep research on.")
		}
		return m, m.setStatus("Deep research off.")

	case key.Matches(msg, m.keyMap.Refresh):
		if !m.account.IsAuthenticated() {
			return m, m.setStatus("Sign in to load projects.")
		}
		return m, m.dispatcher.RefreshProjects(m.account.Email)

	case key.Matches(msg, m.keyMap.NewThread):
		m.registry.CreateThread("New Chat")
		m.sessionMgr.RecordActivity()
		m.clampCursor()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keyMap.NewProject):
		if !m.account.IsAuthenticated() {
			return m, m.setStatus("Sign in to create projects.")
		}
		m.openNewProjectDialog()
		return m, nil

	case key.Matches(msg, m.keyMap.Rename):
		return m.beginRename()

	case key.Matches(msg, m.keyMap.Delete):
		return m.beginDelete()

	case key.Matches(msg, m.keyMap.Upload):
		return m.beginUpload()

	case key.Matches(msg, m.keyMap.Account):
		if !m.account.IsAuthenticated() {
			return m, m.setStatus("Sign in to edit your account.")
		}
		m.openAccountDialog()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

// handleInputKey processes keys while the message input has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Submit):
		cmd := m.dispatcher.Send(m.input.Value(), m.currentModel(), m.deepResearch)
		if cmd == nil {
			return m, nil
		}
		m.input.Reset()
		m.inflight++
		m.sessionMgr.RecordActivity()
		m.sessionMgr.MarkDirty()
		m.refreshViewport()
		return m, tea.Batch(cmd, m.spinner.Tick)

	case key.Matches(msg, m.keyMap.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSidebarKey processes keys while the sidebar has focus.
func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.cursor < len(m.sidebarEntries())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		entry, ok := m.selectedEntry()
		if !ok {
			return m, nil
		}
		m.focus = focusInput
		m.input.Focus()
		if entry.kind == entryProject {
			cmd := m.dispatcher.OpenProject(entry.id)
			m.refreshViewport()
			return m, cmd
		}
		m.registry.SelectThread(entry.id)
		m.refreshViewport()
		return m, nil
	}
	return m, nil
}

// =============================================================================
// DIALOG HANDLING
// =============================================================================

func (m *Model) openNewProjectDialog() {
	name := textinput.New()
	name.Placeholder = "Project name"
	name.CharLimit = 120
	name.Focus()

	desc := textinput.New()
	desc.Placeholder = "Description (optional)"
	desc.CharLimit = 500

	purpose := textinput.New()
	purpose.Placeholder = "Purpose (optional)"
	purpose.CharLimit = 500

	m.dialog = dialogNewProject
	m.dialogInputs = []textinput.Model{name, desc, purpose}
	m.dialogField = 0
	m.dialogTarget = ""
}

func (m *Model) openAccountDialog() {
	name := textinput.New()
	name.Placeholder = "Display name"
	name.CharLimit = 120
	name.SetValue(m.account.Name)
	name.CursorEnd()
	name.Focus()

	guideline := textinput.New()
	guideline.Placeholder = "Default guideline for the assistant (optional)"
	guideline.CharLimit = 1000
	guideline.SetValue(m.account.DefaultGuideline)
	guideline.CursorEnd()

	m.dialog = dialogAccount
	m.dialogInputs = []textinput.Model{name, guideline}
	m.dialogField = 0
	m.dialogTarget = ""
}

func (m *Model) openTextDialog(kind dialogKind, target, placeholder, initial string) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 200
	ti.SetValue(initial)
	ti.CursorEnd()
	ti.Focus()

	m.dialog = kind
	m.dialogInputs = []textinput.Model{ti}
	m.dialogField = 0
	m.dialogTarget = target
}

func (m *Model) openConfirmDialog(kind dialogKind, target string) {
	m.dialog = kind
	m.dialogInputs = nil
	m.dialogField = 0
	m.dialogTarget = target
}

func (m *Model) openNotice(text string) {
	m.dialog = dialogNotice
	m.dialogInputs = nil
	m.dialogField = 0
	m.dialogTarget = ""
	m.noticeText = text
}

// beginRename opens the rename dialog for the sidebar selection.
func (m Model) beginRename() (tea.Model, tea.Cmd) {
	entry, ok := m.selectedEntry()
	if !ok {
		return m, m.setStatus("Select a project or thread in the sidebar first (Tab).")
	}
	if entry.kind == entryProject {
		m.openTextDialog(dialogRenameProject, entry.id, "New project name", entry.title)
	} else {
		m.openTextDialog(dialogRenameThread, entry.id, "New thread title", entry.title)
	}
	return m, nil
}

// beginDelete opens the confirmation dialog for the sidebar selection.
func (m Model) beginDelete() (tea.Model, tea.Cmd) {
	entry, ok := m.selectedEntry()
	if !ok {
		return m, m.setStatus("Select a project or thread in the sidebar first (Tab).")
	}
	if entry.kind == entryProject {
		m.openConfirmDialog(dialogDeleteProject, entry.id)
	} else {
		m.openConfirmDialog(dialogDeleteThread, entry.id)
	}
	return m, nil
}

// beginUpload opens the upload dialog for the active project.
func (m Model) beginUpload() (tea.Model, tea.Cmd) {
	projectID := m.registry.SelectedProjectID()
	if projectID == "" {
		if entry, ok := m.selectedEntry(); ok && entry.kind == entryProject {
			projectID = entry.id
		}
	}
	if projectID == "" {
		return m, m.setStatus("Open a project before uploading files.")
	}
	m.openTextDialog(dialogUpload, projectID, "Path to file", "")
	return m, nil
}

func (m *Model) closeDialog() {
	m.dialog = dialogNone
	m.dialogInputs = nil
	m.dialogField = 0
	m.dialogTarget = ""
	m.noticeText = ""
}

func (m Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		m.closeDialog()
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleFocus):
		if len(m.dialogInputs) > 1 {
			m.dialogInputs[m.dialogField].Blur()
			m.dialogField = (m.dialogField + 1) % len(m.dialogInputs)
			m.dialogInputs[m.dialogField].Focus()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submitDialog()
	}

	if len(m.dialogInputs) > 0 {
		var cmd tea.Cmd
		m.dialogInputs[m.dialogField], cmd = m.dialogInputs[m.dialogField].Update(msg)
		return m, cmd
	}
	return m, nil
}

// submitDialog performs the action the open dialog was collecting input
// for, then closes it.
func (m Model) submitDialog() (tea.Model, tea.Cmd) {
	kind := m.dialog
	target := m.dialogTarget

	switch kind {
	case dialogNewProject:
		name := strings.TrimSpace(m.dialogInputs[0].Value())
		if name == "" {
			return m, m.setStatus("Project name is required.")
		}
		desc := strings.TrimSpace(m.dialogInputs[1].Value())
		purpose := strings.TrimSpace(m.dialogInputs[2].Value())
		m.closeDialog()
		return m, m.dispatcher.CreateProject(m.account.Email, name, desc, purpose)

	case dialogRenameProject:
		name := strings.TrimSpace(m.dialogInputs[0].Value())
		if name == "" {
			return m, m.setStatus("Name cannot be empty.")
		}
		m.closeDialog()
		cmd := m.dispatcher.RenameProject(target, name)
		m.refreshViewport()
		return m, cmd

	case dialogRenameThread:
		title := strings.TrimSpace(m.dialogInputs[0].Value())
		if title == "" {
			return m, m.setStatus("Title cannot be empty.")
		}
		m.closeDialog()
		m.registry.RenameThread(target, title)
		m.sessionMgr.MarkDirty()
		return m, m.saveActiveThread()

	case dialogDeleteProject:
		m.closeDialog()
		return m, m.dispatcher.DeleteProject(target)

	case dialogDeleteThread:
		m.closeDialog()
		m.registry.DeleteThread(target)
		m.clampCursor()
		m.refreshViewport()
		return m, m.deleteStoredThread(target)

	case dialogUpload:
		path := strings.TrimSpace(m.dialogInputs[0].Value())
		if path == "" {
			return m, m.setStatus("Enter a file path.")
		}
		m.closeDialog()
		return m, m.dispatcher.UploadFile(target, path)

	case dialogAccount:
		name := strings.TrimSpace(m.dialogInputs[0].Value())
		if name == "" {
			return m, m.setStatus("Display name cannot be empty.")
		}
		guideline := strings.TrimSpace(m.dialogInputs[1].Value())
		m.closeDialog()
		// Update the live account immediately; the merge into the
		// session file runs in the background.
		m.account.Name = name
		m.account.DefaultGuideline = guideline
		cmd := m.persistAccountPatch(name, guideline)
		return m, tea.Batch(m.setStatus("Account updated."), cmd)
	}

	m.closeDialog()
	return m, nil
}

// =============================================================================
// RESULT HANDLING
// =============================================================================

func (m Model) handleSendResult(msg dispatch.SendResultMsg) (tea.Model, tea.Cmd) {
	if m.inflight > 0 {
		m.inflight--
	}
	if msg.Dropped {
		// The thread was deleted while the call was in flight; the
		// reply was discarded and there is nothing to show.
		return m, nil
	}
	m.refreshViewport()
	if msg.Err != nil {
		return m, m.setStatus("Send failed: " + msg.Err.Error())
	}
	m.sessionMgr.MarkDirty()
	return m, m.saveActiveThread()
}

// =============================================================================
// COMMANDS AND HELPERS
// =============================================================================

// setStatus shows a transient status line and schedules its removal.
func (m *Model) setStatus(s string) tea.Cmd {
	m.statusMsg = s
	m.statusSeq++
	return clearStatusCmd(m.statusSeq)
}

// saveActiveThread persists the active thread in the background.
// Project threads are backend-owned and never saved locally.
func (m Model) saveActiveThread() tea.Cmd {
	if m.threadStore == nil {
		return nil
	}
	th := m.registry.ActiveThread()
	if th == nil || th.ProjectID != "" {
		return nil
	}
	snapshot := th.Clone()
	store := m.threadStore
	return func() tea.Msg {
		return savedMsg{err: store.Save(context.Background(), snapshot)}
	}
}

// persistAccountPatch merges the edited profile fields into the stored
// session. Without an identity store the edit stays in-memory only.
func (m Model) persistAccountPatch(name, guideline string) tea.Cmd {
	if m.identityStore == nil {
		return nil
	}
	store := m.identityStore
	return func() tea.Msg {
		_, err := store.Merge(identity.Patch{
			Name:             &name,
			DefaultGuideline: &guideline,
		})
		return savedMsg{err: err}
	}
}

// deleteStoredThread removes a thread from local persistence. A
// not-found result is fine: synthetic and never-saved threads have no
// row to delete.
func (m Model) deleteStoredThread(id string) tea.Cmd {
	if m.threadStore == nil || strings.HasPrefix(id, model.ProjectThreadPrefix) {
		return nil
	}
	store := m.threadStore
	return func() tea.Msg {
		if err := store.Delete(context.Background(), id); err != nil && !errors.Is(err, storage.ErrThreadNotFound) {
			return savedMsg{err: err}
		}
		return savedMsg{}
	}
}
