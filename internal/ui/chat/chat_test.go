// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"

	"github.com/fininsight/finchat/internal/dispatch"
	"github.com/fininsight/finchat/internal/identity"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/session"
	"github.com/fininsight/finchat/internal/storage"
	"github.com/fininsight/finchat/internal/store"
	"github.com/fininsight/finchat/internal/ui/styles"
)

func testModel(t *testing.T) Model {
	t.Helper()
	registry := store.NewRegistry()
	directory := store.NewDirectory()
	account := &model.Account{Email: "dev@example.com", Name: "Dev User", Token: "tok"}
	mgr := session.NewManager(session.DefaultConfig())
	return New(styles.NewTheme(), account, registry, directory, nil, mgr, nil, nil, "gpt", false)
}

func TestSidebarEntriesOrder(t *testing.T) {
	m := testModel(t)
	m.directory.SetProjects([]model.Project{
		{ID: "1", Name: "Alpha"},
		{ID: "2", Name: "Beta"},
	}, false)
	m.registry.CreateThread("First")
	m.registry.CreateThread("Second")

	entries := m.sidebarEntries()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	if entries[0].kind != entryProject || entries[0].title != "Alpha" {
		t.Errorf("entry 0 = %+v, want project Alpha", entries[0])
	}
	if entries[1].kind != entryProject || entries[1].title != "Beta" {
		t.Errorf("entry 1 = %+v, want project Beta", entries[1])
	}
	// Threads list newest-first.
	if entries[2].kind != entryThread || entries[2].title != "Second" {
		t.Errorf("entry 2 = %+v, want thread Second", entries[2])
	}
	if entries[3].title != "First" {
		t.Errorf("entry 3 = %+v, want thread First", entries[3])
	}
}

func TestSidebarExcludesProjectThreads(t *testing.T) {
	m := testModel(t)
	m.directory.SetProjects([]model.Project{{ID: "7", Name: "Gamma"}}, false)
	m.registry.SelectProject("7")

	entries := m.sidebarEntries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (synthetic project thread must not appear)", len(entries))
	}
	if entries[0].kind != entryProject {
		t.Errorf("entry 0 kind = %v, want project", entries[0].kind)
	}
}

func TestSelectedEntryAndClamp(t *testing.T) {
	m := testModel(t)
	if _, ok := m.selectedEntry(); ok {
		t.Error("selectedEntry should report false on an empty sidebar")
	}

	m.registry.CreateThread("Only")
	m.cursor = 5
	m.clampCursor()
	if m.cursor != 0 {
		t.Errorf("cursor = %d after clamp, want 0", m.cursor)
	}
	entry, ok := m.selectedEntry()
	if !ok || entry.title != "Only" {
		t.Errorf("selectedEntry = %+v ok=%v, want Only", entry, ok)
	}
}

func TestCurrentModelCycle(t *testing.T) {
	m := testModel(t)
	seen := map[string]bool{}
	n := len(modelNames())
	for i := 0; i < n; i++ {
		seen[m.currentModel()] = true
		m.modelIndex = (m.modelIndex + 1) % n
	}
	if len(seen) != n {
		t.Errorf("cycled through %d models, want %d", len(seen), n)
	}
	if m.currentModel() != "gpt" {
		t.Errorf("after full cycle model = %q, want gpt", m.currentModel())
	}
}

func TestNewProjectDialogFields(t *testing.T) {
	m := testModel(t)
	m.openNewProjectDialog()
	if m.dialog != dialogNewProject {
		t.Fatalf("dialog = %v, want dialogNewProject", m.dialog)
	}
	if len(m.dialogInputs) != 3 {
		t.Fatalf("got %d inputs, want 3 (name, description, purpose)", len(m.dialogInputs))
	}
	if !m.dialogInputs[0].Focused() {
		t.Error("name field should start focused")
	}

	m.closeDialog()
	if m.dialog != dialogNone || m.dialogInputs != nil {
		t.Error("closeDialog should reset dialog state")
	}
}

func TestRenameDialogPrefillsTitle(t *testing.T) {
	m := testModel(t)
	m.openTextDialog(dialogRenameThread, "t1", "New thread title", "Old Title")
	if got := m.dialogInputs[0].Value(); got != "Old Title" {
		t.Errorf("prefill = %q, want Old Title", got)
	}
	if m.dialogTarget != "t1" {
		t.Errorf("dialogTarget = %q, want t1", m.dialogTarget)
	}
}

func TestStatusSeqGuard(t *testing.T) {
	m := testModel(t)
	m.setStatus("first")
	firstSeq := m.statusSeq
	m.setStatus("second")

	// A stale clear for the first status must not wipe the second.
	next, _ := m.Update(statusClearMsg{seq: firstSeq})
	m = next.(Model)
	if m.statusMsg != "second" {
		t.Errorf("statusMsg = %q after stale clear, want second", m.statusMsg)
	}

	next, _ = m.Update(statusClearMsg{seq: m.statusSeq})
	m = next.(Model)
	if m.statusMsg != "" {
		t.Errorf("statusMsg = %q after current clear, want empty", m.statusMsg)
	}
}

func TestInflightCountsConcurrentSends(t *testing.T) {
	m := testModel(t)
	m.inflight = 2

	next, _ := m.Update(dispatch.SendResultMsg{})
	m = next.(Model)
	if m.inflight != 1 {
		t.Errorf("inflight = %d after first reply, want 1", m.inflight)
	}
	// The spinner keeps running while a second call is outstanding.
	if _, cmd := m.Update(spinner.TickMsg{}); cmd == nil {
		t.Error("spinner should stay active with a send still in flight")
	}

	next, _ = m.Update(dispatch.SendResultMsg{})
	m = next.(Model)
	if m.inflight != 0 {
		t.Errorf("inflight = %d after second reply, want 0", m.inflight)
	}
	if _, cmd := m.Update(spinner.TickMsg{}); cmd != nil {
		t.Error("spinner should stop once every reply has landed")
	}

	// A stray result must not push the counter negative.
	next, _ = m.Update(dispatch.SendResultMsg{Dropped: true})
	m = next.(Model)
	if m.inflight != 0 {
		t.Errorf("inflight = %d after stray reply, want 0", m.inflight)
	}
}

func TestAccountDialogEditsProfile(t *testing.T) {
	m := testModel(t)
	m.account.DefaultGuideline = "be brief"

	m.openAccountDialog()
	if m.dialog != dialogAccount {
		t.Fatalf("dialog = %v, want dialogAccount", m.dialog)
	}
	if got := m.dialogInputs[0].Value(); got != "Dev User" {
		t.Errorf("name prefill = %q, want Dev User", got)
	}
	if got := m.dialogInputs[1].Value(); got != "be brief" {
		t.Errorf("guideline prefill = %q, want be brief", got)
	}

	m.dialogInputs[0].SetValue("Dev Renamed")
	m.dialogInputs[1].SetValue("answer in Korean")
	next, _ := m.submitDialog()
	m = next.(Model)
	if m.dialog != dialogNone {
		t.Error("submit should close the dialog")
	}
	if m.account.Name != "Dev Renamed" {
		t.Errorf("name = %q, want Dev Renamed", m.account.Name)
	}
	if m.account.DefaultGuideline != "answer in Korean" {
		t.Errorf("guideline = %q, want answer in Korean", m.account.DefaultGuideline)
	}
}

func TestAccountPatchPersistsToSession(t *testing.T) {
	m := testModel(t)
	ids := identity.NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err := ids.Save(m.account); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m.identityStore = ids

	cmd := m.persistAccountPatch("Dev Renamed", "cite sources")
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if msg := cmd().(savedMsg); msg.err != nil {
		t.Fatalf("merge: %v", msg.err)
	}

	out, err := ids.Hydrate()
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if out.Name != "Dev Renamed" || out.DefaultGuideline != "cite sources" {
		t.Errorf("stored account = %+v", out)
	}
	// Identity fields survive the patch untouched.
	if out.Email != "dev@example.com" || out.Token != "tok" {
		t.Errorf("identity fields changed: %+v", out)
	}
}

func TestSaveActiveThreadSkipsProjectThreads(t *testing.T) {
	m := testModel(t)
	ts, err := storage.Open(filepath.Join(t.TempDir(), "threads.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ts.Close() })
	m.threadStore = ts

	m.directory.SetProjects([]model.Project{{ID: "9", Name: "Proj"}}, false)
	m.registry.SelectProject("9")
	if cmd := m.saveActiveThread(); cmd != nil {
		t.Error("saveActiveThread should be nil for project threads")
	}

	m.registry.CreateThread("Local")
	if cmd := m.saveActiveThread(); cmd == nil {
		t.Error("saveActiveThread should produce a command for plain threads")
	}
}
