// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.AutoSaveEnabled {
		t.Error("Default AutoSaveEnabled should be true")
	}
	if cfg.AutoSaveInterval != 30*time.Second {
		t.Errorf("Default AutoSaveInterval = %v, want 30s", cfg.AutoSaveInterval)
	}
}

func TestSessionIDStable(t *testing.T) {
	m := NewManager(DefaultConfig())

	if m.SessionID() == "" {
		t.Error("SessionID should not be empty")
	}
	if m.SessionID() != m.SessionID() {
		t.Error("SessionID should be consistent")
	}

	other := NewManager(DefaultConfig())
	if m.SessionID() == other.SessionID() {
		t.Error("Sessions should get distinct IDs")
	}
}

func TestDirtyTracking(t *testing.T) {
	m := NewManager(DefaultConfig())

	if m.IsDirty() {
		t.Error("fresh session should be clean")
	}
	m.MarkDirty()
	if !m.IsDirty() {
		t.Error("MarkDirty should set the flag")
	}
	m.MarkClean()
	if m.IsDirty() {
		t.Error("MarkClean should clear the flag")
	}
}

func TestShouldAutoSave(t *testing.T) {
	m := NewManager(Config{AutoSaveEnabled: true, AutoSaveInterval: time.Millisecond})

	// Clean: never saves.
	time.Sleep(5 * time.Millisecond)
	if m.ShouldAutoSave() {
		t.Error("clean session should not auto-save")
	}

	m.MarkDirty()
	if !m.ShouldAutoSave() {
		t.Error("dirty session past interval should auto-save")
	}

	m.MarkClean()
	m.MarkDirty()
	m.SetAutoSaveInterval(time.Hour)
	if m.ShouldAutoSave() {
		t.Error("interval not yet elapsed")
	}
}

func TestAutoSaveDisabled(t *testing.T) {
	m := NewManager(Config{AutoSaveEnabled: false, AutoSaveInterval: time.Millisecond})
	m.MarkDirty()
	time.Sleep(5 * time.Millisecond)
	if m.ShouldAutoSave() {
		t.Error("disabled autosave should never trigger")
	}
}

func TestRecordActivity(t *testing.T) {
	m := NewManager(DefaultConfig())
	time.Sleep(5 * time.Millisecond)
	m.RecordActivity()
	if m.IdleTime() > time.Second {
		t.Errorf("IdleTime = %v after RecordActivity", m.IdleTime())
	}
}
