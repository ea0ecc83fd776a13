// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"

	"github.com/fininsight/finchat/internal/model"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds every known thread with its transcript, plus the
// active selection. Project-mode and thread-mode are mutually
// exclusive: selecting a project clears the plain-thread selection and
// vice versa. Absence of a thread id means "not yet loaded", not
// "empty".
type Registry struct {
	mu sync.RWMutex

	threads map[string]*model.Thread
	// order lists thread IDs newest-first; new threads are prepended.
	order []string

	// Exactly one of these is non-empty while something is selected.
	selectedThreadID  string
	selectedProjectID string
}

// NewRegistry creates an empty thread registry.
func NewRegistry() *Registry {
	return &Registry{
		threads: make(map[string]*model.Thread),
	}
}

// =============================================================================
// THREAD LIFECYCLE
// =============================================================================

// CreateThread creates a standalone thread with a fresh unique ID,
// prepends it to the list, and selects it.
func (r *Registry) CreateThread(title string) *model.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()

	th := model.NewThread()
	// Regenerate on the (vanishing) chance of a collision with an
	// existing registry entry.
	th.ID = model.GenerateUniqueID(func(id string) bool {
		_, taken := r.threads[id]
		return taken
	})
	th.Title = title

	r.threads[th.ID] = th
	r.order = append([]string{th.ID}, r.order...)
	r.selectedThreadID = th.ID
	r.selectedProjectID = ""
	return th
}

// AdoptThread registers an existing thread (e.g. loaded from local
// storage) without selecting it. Threads already present are replaced.
func (r *Registry) AdoptThread(th *model.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.threads[th.ID]; !exists {
		r.order = append(r.order, th.ID)
	}
	r.threads[th.ID] = th
}

// Thread returns the thread with the given ID, or nil.
func (r *Registry) Thread(id string) *model.Thread {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threads[id]
}

// Threads returns all plain (non-project) threads in display order.
func (r *Registry) Threads() []*model.Thread {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Thread, 0, len(r.order))
	for _, id := range r.order {
		if th := r.threads[id]; th != nil && !th.IsProjectThread() {
			out = append(out, th)
		}
	}
	return out
}

// RenameThread sets a thread's title.
func (r *Registry) RenameThread(id, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	th := r.threads[id]
	if th == nil {
		return false
	}
	th.SetTitle(title)
	return true
}

// DeleteThread removes a thread and its transcript. If it was
// selected, selection falls back to the next existing plain thread, or
// to none.
func (r *Registry) DeleteThread(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[id]; !ok {
		return false
	}
	delete(r.threads, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.selectedThreadID == id {
		r.selectedThreadID = ""
		for _, oid := range r.order {
			if th := r.threads[oid]; th != nil && !th.IsProjectThread() {
				r.selectedThreadID = oid
				break
			}
		}
	}
	return true
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectThread makes a plain thread active, clearing any project
// selection. Returns false if the thread does not exist.
func (r *Registry) SelectThread(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[id]; !ok {
		return false
	}
	r.selectedThreadID = id
	r.selectedProjectID = ""
	return true
}

// SelectProject makes a project's conversation active, clearing any
// plain-thread selection. The synthetic project thread is created on
// first selection; its transcript is filled by SetTranscript once the
// history fetch lands.
func (r *Registry) SelectProject(projectID string) *model.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selectedProjectID = projectID
	r.selectedThreadID = ""

	id := model.ProjectThreadPrefix + projectID
	th := r.threads[id]
	if th == nil {
		th = model.NewProjectThread(projectID)
		r.threads[id] = th
		r.order = append([]string{id}, r.order...)
	}
	return th
}

// ClearSelection deselects everything.
func (r *Registry) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectedThreadID = ""
	r.selectedProjectID = ""
}

// SelectedProjectID returns the active project ID, or "".
func (r *Registry) SelectedProjectID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectedProjectID
}

// ActiveThread returns the thread whose transcript is on screen: the
// selected plain thread, or the selected project's synthetic thread.
// Nil when nothing is selected.
func (r *Registry) ActiveThread() *model.Thread {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.selectedThreadID != "" {
		return r.threads[r.selectedThreadID]
	}
	if r.selectedProjectID != "" {
		return r.threads[model.ProjectThreadPrefix+r.selectedProjectID]
	}
	return nil
}

// EnsureActiveThread returns the active thread, synthesizing and
// selecting a fresh one when nothing is selected. Sending is never
// blocked on thread existence.
func (r *Registry) EnsureActiveThread() *model.Thread {
	if th := r.ActiveThread(); th != nil {
		return th
	}
	return r.CreateThread("")
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// SetTranscript overwrites a thread's transcript. Used when a project
// history fetch lands: re-selecting the same project re-fetches and
// overwrites rather than appending duplicates.
func (r *Registry) SetTranscript(threadID string, messages []*model.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	th := r.threads[threadID]
	if th == nil {
		return false
	}
	th.Messages = append([]*model.Message(nil), messages...)
	return true
}

// ResolvePlaceholder finds a placeholder by thread and message ID and
// resolves it with Fill (ok=true) or Fail (ok=false). Returns false
// when the thread or message no longer exists; a reply landing after
// its thread was deleted is silently dropped.
func (r *Registry) ResolvePlaceholder(threadID, messageID string, ok bool, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	th := r.threads[threadID]
	if th == nil {
		return false
	}
	msg := th.MessageByID(messageID)
	if msg == nil {
		return false
	}
	if ok {
		return msg.Fill(text)
	}
	return msg.Fail(text)
}
