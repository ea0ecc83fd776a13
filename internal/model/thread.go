// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// MaxMessages is the maximum number of messages kept in a thread
// transcript. When exceeded, old messages are pruned to prevent
// unbounded memory growth.
const MaxMessages = 1000

// ProjectThreadPrefix prefixes the synthetic thread ID that represents
// a project-wide conversation. A project's chat history is addressed as
// thread "project-<projectID>" so the transcript cache has a single key
// space for both kinds of conversation.
const ProjectThreadPrefix = "project-"

// =============================================================================
// THREAD TYPE
// =============================================================================

// Thread holds one conversation: its identity, optional project binding,
// and transcript.
type Thread struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ProjectID is set when this thread is the synthetic conversation
	// of a project; empty for standalone threads.
	ProjectID string `json:"project_id,omitempty"`

	// Transcript
	Messages []*Message `json:"messages"`
}

// NewThread creates a new standalone thread with a generated ID.
func NewThread() *Thread {
	return &Thread{
		ID:        GenerateID(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Messages:  make([]*Message, 0),
	}
}

// NewProjectThread creates the synthetic thread representing a
// project's conversation.
func NewProjectThread(projectID string) *Thread {
	return &Thread{
		ID:        ProjectThreadPrefix + projectID,
		ProjectID: projectID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Messages:  make([]*Message, 0),
	}
}

// IsProjectThread reports whether the thread is a project's synthetic
// conversation.
func (t *Thread) IsProjectThread() bool {
	return t.ProjectID != ""
}

// ParseProjectThreadID extracts the project ID from a synthetic thread
// ID, or returns "" when the ID does not name a project thread.
func ParseProjectThreadID(threadID string) string {
	if rest, ok := strings.CutPrefix(threadID, ProjectThreadPrefix); ok && rest != "" {
		return rest
	}
	return ""
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the transcript.
func (t *Thread) AddMessage(msg *Message) {
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = time.Now()
	t.updateTitle()
	t.pruneOldMessages()
}

// AddUserMessage creates and appends a user message.
func (t *Thread) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	t.AddMessage(msg)
	return msg
}

// AddPlaceholder creates and appends a pending assistant message.
func (t *Thread) AddPlaceholder() *Message {
	msg := NewPlaceholder()
	t.AddMessage(msg)
	return msg
}

// LastMessage returns the most recent message, or nil if empty.
func (t *Thread) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// MessageByID returns a message by its ID, or nil if not found.
func (t *Thread) MessageByID(id string) *Message {
	for _, msg := range t.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// HasPending reports whether any placeholder in the transcript is
// still awaiting its backend reply.
func (t *Thread) HasPending() bool {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].IsPending() {
			return true
		}
	}
	return false
}

// MessageCount returns the number of messages.
func (t *Thread) MessageCount() int {
	return len(t.Messages)
}

// IsEmpty returns true if there are no messages.
func (t *Thread) IsEmpty() bool {
	return len(t.Messages) == 0
}

// ClearHistory removes all messages from the thread.
func (t *Thread) ClearHistory() {
	t.Messages = make([]*Message, 0)
	t.UpdatedAt = time.Now()
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-generates a title from the first user message if not set.
func (t *Thread) updateTitle() {
	if t.Title != "" {
		return
	}
	for _, msg := range t.Messages {
		if msg.Role == RoleUser {
			t.Title = msg.Preview(50)
			return
		}
	}
}

// SetTitle manually sets the thread title.
func (t *Thread) SetTitle(title string) {
	t.Title = title
	t.UpdatedAt = time.Now()
}

// GetTitle returns the thread title or a default.
func (t *Thread) GetTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return "New Thread"
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

// Clone creates a deep copy of the thread.
func (t *Thread) Clone() *Thread {
	clone := &Thread{
		ID:        t.ID,
		Title:     t.Title,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		ProjectID: t.ProjectID,
		Messages:  make([]*Message, len(t.Messages)),
	}
	for i, msg := range t.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return clone
}

// Meta returns lightweight metadata for listing.
func (t *Thread) Meta() ThreadMeta {
	return ThreadMeta{
		ID:           t.ID,
		Title:        t.GetTitle(),
		ProjectID:    t.ProjectID,
		MessageCount: len(t.Messages),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// ThreadMeta holds lightweight metadata for listing.
type ThreadMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ProjectID    string    `json:"project_id,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// pruneOldMessages removes old messages when the transcript exceeds
// MaxMessages. Pending placeholders are never pruned: the dispatcher
// still holds their IDs.
func (t *Thread) pruneOldMessages() {
	if len(t.Messages) <= MaxMessages {
		return
	}

	var keep []*Message
	excess := len(t.Messages) - MaxMessages
	for i, msg := range t.Messages {
		if i < excess && !msg.IsPending() {
			continue
		}
		keep = append(keep, msg)
	}
	t.Messages = keep
}
