// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// PROJECT TYPE
// =============================================================================

// Project represents a backend-owned workspace that groups a
// conversation with its uploaded reference files. Project IDs are
// assigned by the backend; the client never invents them.
type Project struct {
	ID          string    `json:"project_id"`
	Name        string    `json:"project_name"`
	Description string    `json:"description,omitempty"`
	Purpose     string    `json:"project_purpose,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// ThreadID returns the synthetic thread ID that addresses this
// project's conversation in the transcript cache.
func (p *Project) ThreadID() string {
	return ProjectThreadPrefix + p.ID
}

// DisplayName returns the project name or a placeholder for unnamed
// projects.
func (p *Project) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "Untitled Project"
}

// =============================================================================
// ACCOUNT TYPE
// =============================================================================

// Account holds the authenticated user's identity as delivered by the
// OAuth redirect. Token is the backend session credential; it is
// sealed before touching disk.
type Account struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	Token   string `json:"-"`

	// DefaultGuideline is the user's standing instruction for the
	// assistant, edited from the account form.
	DefaultGuideline string `json:"default_guideline,omitempty"`

	// NewUser is true when the backend reported no prior projects for
	// this email on first listing.
	NewUser bool `json:"new_user,omitempty"`
}

// IsAuthenticated reports whether the account carries a usable session.
func (a *Account) IsAuthenticated() bool {
	return a != nil && a.Email != "" && a.Token != ""
}

// ShortName returns the first name for greeting lines, falling back to
// the email local part.
func (a *Account) ShortName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		for i, r := range a.Name {
			if r == ' ' {
				return a.Name[:i]
			}
		}
		return a.Name
	}
	for i, r := range a.Email {
		if r == '@' {
			return a.Email[:i]
		}
	}
	return a.Email
}
