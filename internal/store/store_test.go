// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"

	"github.com/fininsight/finchat/internal/model"
)

func sampleProjects() []model.Project {
	return []model.Project{
		{ID: "1", Name: "alpha"},
		{ID: "2", Name: "beta"},
		{ID: "3", Name: "gamma"},
	}
}

// =============================================================================
// DIRECTORY TESTS
// =============================================================================

func TestDirectorySetProjects(t *testing.T) {
	d := NewDirectory()
	if d.Loaded() {
		t.Error("fresh directory should not report loaded")
	}

	d.SetProjects(sampleProjects(), false)
	if !d.Loaded() || d.Count() != 3 {
		t.Errorf("loaded=%v count=%d", d.Loaded(), d.Count())
	}

	// Returned slice is a copy.
	got := d.Projects()
	got[0].Name = "mutated"
	if p, _ := d.ByID("1"); p.Name != "alpha" {
		t.Error("Projects() should return a copy")
	}
}

func TestDirectoryNewUserEmptyIsValid(t *testing.T) {
	d := NewDirectory()
	d.SetProjects(nil, true)

	if !d.Loaded() {
		t.Error("empty listing is a valid loaded state, not an error")
	}
	if !d.IsNewUser() {
		t.Error("new_user flag should be surfaced")
	}
	if d.Count() != 0 {
		t.Errorf("count = %d", d.Count())
	}
}

func TestDirectoryListFailureKeepsCache(t *testing.T) {
	d := NewDirectory()
	d.SetProjects(sampleProjects(), false)

	// A failed listing never calls SetProjects; cache must be intact.
	if d.Count() != 3 {
		t.Errorf("stale cache lost: count = %d", d.Count())
	}
}

func TestRenameCommitAndRollback(t *testing.T) {
	d := NewDirectory()
	d.SetProjects(sampleProjects(), false)

	// Optimistic apply: cache shows the new name immediately.
	cmd, err := d.BeginRename("2", "renamed")
	if err != nil {
		t.Fatalf("BeginRename: %v", err)
	}
	if p, _ := d.ByID("2"); p.Name != "renamed" {
		t.Errorf("optimistic name = %q", p.Name)
	}
	if cmd.State() != CommandPending {
		t.Errorf("state = %q", cmd.State())
	}

	cmd.Rollback()
	if p, _ := d.ByID("2"); p.Name != "beta" {
		t.Errorf("name after rollback = %q", p.Name)
	}
	if cmd.State() != CommandRolledBack {
		t.Errorf("state = %q", cmd.State())
	}

	// Commit path: rollback afterwards is a no-op.
	cmd2, _ := d.BeginRename("2", "final")
	cmd2.Commit()
	cmd2.Rollback()
	if p, _ := d.ByID("2"); p.Name != "final" {
		t.Errorf("committed rename reverted: %q", p.Name)
	}
}

func TestDeleteCommitAndRollback(t *testing.T) {
	d := NewDirectory()
	d.SetProjects(sampleProjects(), false)

	cmd, err := d.BeginDelete("2")
	if err != nil {
		t.Fatalf("BeginDelete: %v", err)
	}
	if _, ok := d.ByID("2"); ok {
		t.Error("optimistic delete should remove from cache immediately")
	}

	cmd.Rollback()
	projects := d.Projects()
	if len(projects) != 3 || projects[1].ID != "2" {
		t.Errorf("rollback should restore original position, got %+v", projects)
	}

	cmd2, _ := d.BeginDelete("3")
	cmd2.Commit()
	if d.Count() != 2 {
		t.Errorf("count after committed delete = %d", d.Count())
	}
}

func TestBeginRenameUnknownProject(t *testing.T) {
	d := NewDirectory()
	d.SetProjects(sampleProjects(), false)

	if _, err := d.BeginRename("99", "x"); err != ErrProjectNotFound {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
	if _, err := d.BeginDelete("99"); err != ErrProjectNotFound {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestCreateThreadSelectsAndPrepends(t *testing.T) {
	r := NewRegistry()

	first := r.CreateThread("first")
	second := r.CreateThread("second")

	if got := r.ActiveThread(); got == nil || got.ID != second.ID {
		t.Error("newest thread should be selected")
	}

	threads := r.Threads()
	if len(threads) != 2 || threads[0].ID != second.ID || threads[1].ID != first.ID {
		t.Error("threads should list newest first")
	}
}

func TestSelectionMutuallyExclusive(t *testing.T) {
	r := NewRegistry()
	th := r.CreateThread("plain")

	r.SelectProject("42")
	if r.SelectedProjectID() != "42" {
		t.Error("project should be selected")
	}
	if got := r.ActiveThread(); got == nil || got.ID != "project-42" {
		t.Errorf("active thread = %+v, want project thread", got)
	}

	// Selecting the plain thread clears the project.
	if !r.SelectThread(th.ID) {
		t.Fatal("SelectThread failed")
	}
	if r.SelectedProjectID() != "" {
		t.Error("project selection should be cleared")
	}
	if got := r.ActiveThread(); got.ID != th.ID {
		t.Errorf("active = %q", got.ID)
	}
}

func TestSelectProjectOverwritesTranscript(t *testing.T) {
	r := NewRegistry()

	th := r.SelectProject("7")
	r.SetTranscript(th.ID, []*model.Message{
		model.NewMessage(model.RoleAssistant, "round one"),
	})

	// Re-selecting re-fetches; the new transcript replaces the old.
	r.SelectProject("9")
	th = r.SelectProject("7")
	r.SetTranscript(th.ID, []*model.Message{
		model.NewMessage(model.RoleAssistant, "round two"),
	})

	if got := r.Thread("project-7"); got.MessageCount() != 1 || got.Messages[0].Content != "round two" {
		t.Errorf("transcript not overwritten: %+v", got.Messages)
	}
}

func TestDeleteThreadSelectionFallback(t *testing.T) {
	r := NewRegistry()
	a := r.CreateThread("a")
	b := r.CreateThread("b")

	// b is selected; deleting it falls back to a.
	if !r.DeleteThread(b.ID) {
		t.Fatal("DeleteThread failed")
	}
	if got := r.ActiveThread(); got == nil || got.ID != a.ID {
		t.Error("selection should fall back to remaining thread")
	}
	if r.Thread(b.ID) != nil {
		t.Error("deleted thread still in registry")
	}

	// Deleting the last thread leaves no selection.
	r.DeleteThread(a.ID)
	if r.ActiveThread() != nil {
		t.Error("selection should be none")
	}
}

func TestEnsureActiveThreadSynthesizes(t *testing.T) {
	r := NewRegistry()

	th := r.EnsureActiveThread()
	if th == nil {
		t.Fatal("EnsureActiveThread returned nil")
	}
	if got := r.ActiveThread(); got == nil || got.ID != th.ID {
		t.Error("synthesized thread should be selected")
	}

	// With a selection present, no new thread is created.
	again := r.EnsureActiveThread()
	if again.ID != th.ID {
		t.Error("existing selection should be reused")
	}
}

func TestResolvePlaceholder(t *testing.T) {
	r := NewRegistry()
	th := r.CreateThread("t")
	th.AddUserMessage("question")
	ph := th.AddPlaceholder()

	if !r.ResolvePlaceholder(th.ID, ph.ID, true, "answer") {
		t.Fatal("ResolvePlaceholder should succeed")
	}
	if ph.Content != "answer" || ph.Status != model.StatusFilled {
		t.Errorf("placeholder = %+v", ph)
	}

	// Exactly once: a second resolution is dropped.
	if r.ResolvePlaceholder(th.ID, ph.ID, false, "late error") {
		t.Error("second resolution should be rejected")
	}
	if ph.Content != "answer" {
		t.Errorf("content mutated: %q", ph.Content)
	}
}

func TestResolvePlaceholderDeletedThreadDropped(t *testing.T) {
	r := NewRegistry()
	th := r.CreateThread("t")
	ph := th.AddPlaceholder()

	r.DeleteThread(th.ID)

	// Reply lands after deletion: silently dropped.
	if r.ResolvePlaceholder(th.ID, ph.ID, true, "orphan reply") {
		t.Error("resolution against deleted thread should be dropped")
	}
}

func TestThreadsExcludesProjectThreads(t *testing.T) {
	r := NewRegistry()
	r.CreateThread("plain")
	r.SelectProject("42")

	threads := r.Threads()
	if len(threads) != 1 || threads[0].IsProjectThread() {
		t.Errorf("Threads() should list only plain threads, got %d", len(threads))
	}
}
