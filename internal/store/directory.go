// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the client-side caches: the project directory
// (read-through cache of backend projects) and the thread registry
// (threads, transcripts, and the active selection).
package store

import (
	"errors"
	"sync"

	"github.com/fininsight/finchat/internal/model"
)

// ErrProjectNotFound indicates the project is not in the local cache.
var ErrProjectNotFound = errors.New("project not found")

// =============================================================================
// COMMAND STATE
// =============================================================================

// CommandState tracks an optimistic mutation's lifecycle.
type CommandState string

const (
	CommandPending    CommandState = "pending"
	CommandCommitted  CommandState = "committed"
	CommandRolledBack CommandState = "rolled-back"
)

// Command is an optimistic directory mutation. The local cache is
// updated immediately; the caller commits after backend success or
// rolls back after failure. Exactly one of Commit or Rollback applies.
type Command struct {
	mu    sync.Mutex
	state CommandState
	undo  func()
}

// State returns the command's current state.
func (c *Command) State() CommandState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Commit marks the optimistic change permanent.
func (c *Command) Commit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CommandPending {
		c.state = CommandCommitted
	}
}

// Rollback reverts the optimistic change. Idempotent; does nothing
// after Commit.
func (c *Command) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CommandPending {
		return
	}
	c.state = CommandRolledBack
	if c.undo != nil {
		c.undo()
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is the read-through cache of backend projects. The backend
// owns project identity; the directory only mirrors what listing
// returned, plus any optimistic mutations in flight.
type Directory struct {
	mu       sync.RWMutex
	projects []model.Project
	newUser  bool
	loaded   bool
}

// NewDirectory creates an empty project directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// SetProjects replaces the cache after a successful listing. Listing
// order is whatever the backend returned; no re-sort.
func (d *Directory) SetProjects(projects []model.Project, newUser bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.projects = append([]model.Project(nil), projects...)
	d.newUser = newUser
	d.loaded = true
}

// Projects returns a copy of the cached project list. A failed listing
// never reaches this cache: callers keep showing the prior state.
func (d *Directory) Projects() []model.Project {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Project(nil), d.projects...)
}

// IsNewUser reports whether the last listing flagged this account as
// having no prior projects.
func (d *Directory) IsNewUser() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.newUser
}

// Loaded reports whether at least one listing has succeeded.
func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Count returns the number of cached projects.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.projects)
}

// ByID returns the cached project with the given ID.
func (d *Directory) ByID(id string) (model.Project, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

// =============================================================================
// OPTIMISTIC MUTATIONS
// =============================================================================

// BeginRename applies a rename to the local cache immediately and
// returns the pending command. Rollback restores the previous name.
func (d *Directory) BeginRename(id, newName string) (*Command, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.projects {
		if d.projects[i].ID != id {
			continue
		}
		oldName := d.projects[i].Name
		d.projects[i].Name = newName
		return &Command{
			state: CommandPending,
			undo: func() {
				d.mu.Lock()
				defer d.mu.Unlock()
				for j := range d.projects {
					if d.projects[j].ID == id {
						d.projects[j].Name = oldName
						return
					}
				}
			},
		}, nil
	}
	return nil, ErrProjectNotFound
}

// BeginDelete removes a project from the local cache immediately and
// returns the pending command. Rollback reinserts it at its original
// position.
func (d *Directory) BeginDelete(id string) (*Command, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.projects {
		if d.projects[i].ID != id {
			continue
		}
		removed := d.projects[i]
		pos := i
		d.projects = append(d.projects[:i], d.projects[i+1:]...)
		return &Command{
			state: CommandPending,
			undo: func() {
				d.mu.Lock()
				defer d.mu.Unlock()
				if pos > len(d.projects) {
					pos = len(d.projects)
				}
				d.projects = append(d.projects[:pos], append([]model.Project{removed}, d.projects[pos:]...)...)
			},
		}, nil
	}
	return nil, ErrProjectNotFound
}
