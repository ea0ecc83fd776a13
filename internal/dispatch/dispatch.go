// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch turns user actions into backend calls and local
// state transitions. Sending is optimistic: the user message and a
// pending assistant placeholder are appended before the request leaves
// the machine, and the placeholder is resolved exactly once when the
// reply (or the failure) lands.
package dispatch

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fininsight/finchat/internal/backend"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/store"
	"github.com/fininsight/finchat/internal/util"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// SendResultMsg reports that an agent call finished. Dropped is true
// when the thread or placeholder was gone by the time the reply landed;
// the reply was discarded without touching any transcript.
type SendResultMsg struct {
	ThreadID  string
	MessageID string
	Content   string
	Err       error
	Dropped   bool
}

// ProjectsLoadedMsg reports a project listing attempt. On failure the
// cached directory is untouched.
type ProjectsLoadedMsg struct {
	NewUser bool
	Err     error
}

// ProjectCreatedMsg reports a project creation attempt. Ack carries the
// backend's acknowledgement message on success.
type ProjectCreatedMsg struct {
	Name string
	Ack  string
	Err  error
}

// ProjectRenamedMsg reports a rename attempt. RolledBack is true when
// the backend rejected the rename and the optimistic change was
// reverted.
type ProjectRenamedMsg struct {
	ProjectID  string
	Err        error
	RolledBack bool
}

// ProjectDeletedMsg reports a delete attempt. RolledBack is true when
// the backend rejected the delete and the project was restored.
type ProjectDeletedMsg struct {
	ProjectID  string
	Err        error
	RolledBack bool
}

// ProjectHistoryMsg reports a project history fetch. On success the
// project thread's transcript has been overwritten with the fetched
// history.
type ProjectHistoryMsg struct {
	ProjectID string
	Err       error
}

// FileUploadedMsg reports a file upload attempt.
type FileUploadedMsg struct {
	ProjectID string
	Path      string
	Err       error
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher coordinates the backend client with the local stores.
type Dispatcher struct {
	client    *backend.Client
	registry  *store.Registry
	directory *store.Directory
	sessionID string
}

// New creates a dispatcher. sessionID identifies this client instance
// to the backend across agent calls.
func New(client *backend.Client, registry *store.Registry, directory *store.Directory, sessionID string) *Dispatcher {
	return &Dispatcher{
		client:    client,
		registry:  registry,
		directory: directory,
		sessionID: sessionID,
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Send normalizes the input and, if non-empty, appends the user
// message plus a pending placeholder to the active thread (creating
// one when nothing is selected) and returns the command that performs
// the agent call. Empty input returns nil with no state changed.
func (d *Dispatcher) Send(input, modelName string, deepResearch bool) tea.Cmd {
	prompt := util.NormalizeInput(input)
	if prompt == "" {
		return nil
	}

	th := d.registry.EnsureActiveThread()
	th.AddUserMessage(prompt)
	ph := th.AddPlaceholder()

	threadID := th.ID
	messageID := ph.ID
	projectID := th.ProjectID

	return func() tea.Msg {
		reply, err := d.client.AgentCall(context.Background(), modelName, deepResearch, d.sessionID, prompt, projectID)
		if err != nil {
			delivered := d.registry.ResolvePlaceholder(threadID, messageID, false, failureNotice(err))
			return SendResultMsg{ThreadID: threadID, MessageID: messageID, Err: err, Dropped: !delivered}
		}
		delivered := d.registry.ResolvePlaceholder(threadID, messageID, true, reply)
		return SendResultMsg{ThreadID: threadID, MessageID: messageID, Content: reply, Dropped: !delivered}
	}
}

// failureNotice maps a backend error to the notice shown in place of
// the reply.
func failureNotice(err error) string {
	switch {
	case errors.Is(err, backend.ErrAuthFailed):
		return "Authentication failed. Sign in again to continue."
	case errors.Is(err, backend.ErrRateLimited):
		return "The backend is rate limiting requests. Wait a moment and retry."
	case errors.Is(err, backend.ErrUnknownModel):
		return "Unknown model. Pick a model from the selector and retry."
	default:
		return "The assistant could not respond: " + err.Error()
	}
}

// =============================================================================
// PROJECT OPERATIONS
// =============================================================================

// RefreshProjects fetches the project listing for the account. On
// success the directory cache is replaced; on failure it is left
// untouched so the last known listing keeps showing.
func (d *Dispatcher) RefreshProjects(email string) tea.Cmd {
	return func() tea.Msg {
		projects, newUser, err := d.client.ListProjects(context.Background(), email)
		if err != nil {
			return ProjectsLoadedMsg{Err: err}
		}
		d.directory.SetProjects(projects, newUser)
		return ProjectsLoadedMsg{NewUser: newUser}
	}
}

// CreateProject creates a project on the backend. The caller should
// refresh the listing on success; creation does not guess the new
// project's ID locally.
func (d *Dispatcher) CreateProject(email, name, description, purpose string) tea.Cmd {
	return func() tea.Msg {
		ack, err := d.client.CreateProject(context.Background(), email, name, description, purpose)
		return ProjectCreatedMsg{Name: name, Ack: ack, Err: err}
	}
}

// RenameProject applies the rename to the cache immediately and
// confirms it with the backend, rolling back on failure.
func (d *Dispatcher) RenameProject(projectID, newName string) tea.Cmd {
	cmd, err := d.directory.BeginRename(projectID, newName)
	if err != nil {
		return func() tea.Msg {
			return ProjectRenamedMsg{ProjectID: projectID, Err: err}
		}
	}
	return func() tea.Msg {
		if err := d.client.RenameProject(context.Background(), projectID, newName); err != nil {
			cmd.Rollback()
			return ProjectRenamedMsg{ProjectID: projectID, Err: err, RolledBack: true}
		}
		cmd.Commit()
		return ProjectRenamedMsg{ProjectID: projectID}
	}
}

// DeleteProject removes the project from the cache immediately and
// confirms with the backend, rolling back on failure. On success the
// project's synthetic thread is dropped from the registry as well.
func (d *Dispatcher) DeleteProject(projectID string) tea.Cmd {
	cmd, err := d.directory.BeginDelete(projectID)
	if err != nil {
		return func() tea.Msg {
			return ProjectDeletedMsg{ProjectID: projectID, Err: err}
		}
	}
	return func() tea.Msg {
		if err := d.client.DeleteProject(context.Background(), projectID); err != nil {
			cmd.Rollback()
			return ProjectDeletedMsg{ProjectID: projectID, Err: err, RolledBack: true}
		}
		cmd.Commit()
		d.registry.DeleteThread(model.ProjectThreadPrefix + projectID)
		return ProjectDeletedMsg{ProjectID: projectID}
	}
}

// OpenProject selects the project and returns the command that fetches
// its history. The fetched history overwrites the project thread's
// transcript, so re-opening never duplicates messages.
func (d *Dispatcher) OpenProject(projectID string) tea.Cmd {
	th := d.registry.SelectProject(projectID)
	threadID := th.ID
	return func() tea.Msg {
		records, err := d.client.ListChats(context.Background(), projectID)
		if err != nil {
			return ProjectHistoryMsg{ProjectID: projectID, Err: err}
		}
		d.registry.SetTranscript(threadID, backend.Transcript(records))
		return ProjectHistoryMsg{ProjectID: projectID}
	}
}

// UploadFile uploads a local file into the project's document set.
func (d *Dispatcher) UploadFile(projectID, path string) tea.Cmd {
	return func() tea.Msg {
		err := d.client.UploadFile(context.Background(), projectID, path)
		return FileUploadedMsg{ProjectID: projectID, Path: path, Err: err}
	}
}
