// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for accounts, projects,
// threads, and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/fininsight/finchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE STATUS
// =============================================================================

// Status tracks the lifecycle of an assistant placeholder message.
// User messages are always StatusFilled.
type Status string

const (
	// StatusPending marks an assistant placeholder whose backend reply
	// has not arrived yet.
	StatusPending Status = "pending"

	// StatusFilled marks a message with final content.
	StatusFilled Status = "filled"

	// StatusFailed marks an assistant placeholder whose backend call
	// failed; Content holds the error notice.
	StatusFailed Status = "failed"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a thread transcript.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Placeholder lifecycle (assistant messages only)
	Status Status `json:"status"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        GenerateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Status:    StatusFilled,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewPlaceholder creates a pending assistant message with no content.
// Exactly one of Fill or Fail must later resolve it.
func NewPlaceholder() *Message {
	return &Message{
		ID:        GenerateID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		Status:    StatusPending,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsPending reports whether the message is an unresolved placeholder.
func (m *Message) IsPending() bool {
	return m.Status == StatusPending
}

// Fill resolves a pending placeholder with the backend reply.
// Returns false without mutating if the message was already resolved:
// a placeholder transitions exactly once.
func (m *Message) Fill(content string) bool {
	if m.Status != StatusPending {
		return false
	}
	m.Content = content
	m.Status = StatusFilled
	return true
}

// Fail resolves a pending placeholder with an error notice.
// Returns false without mutating if the message was already resolved.
func (m *Message) Fail(notice string) bool {
	if m.Status != StatusPending {
		return false
	}
	m.Content = notice
	m.Status = StatusFailed
	return true
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GenerateID creates a unique identifier for messages and threads.
// Callers holding an ID set should use GenerateUniqueID, which retries
// on collision.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateUniqueID generates an ID not present in taken, regenerating
// on collision.
func GenerateUniqueID(taken func(id string) bool) string {
	for {
		id := uuid.NewString()
		if taken == nil || !taken(id) {
			return id
		}
	}
}
