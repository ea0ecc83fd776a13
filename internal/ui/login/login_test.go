// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package login

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fininsight/finchat/internal/auth"
	"github.com/fininsight/finchat/internal/ui/styles"
)

func testLogin() Model {
	flow := auth.NewFlow("http://127.0.0.1:0", 0, time.Second)
	return New(styles.NewTheme(), flow)
}

func TestSkipEmitsCompleted(t *testing.T) {
	m := testLogin()
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if cmd == nil {
		t.Fatal("skip should produce a command")
	}
	msg, ok := cmd().(CompletedMsg)
	if !ok {
		t.Fatalf("got %T, want CompletedMsg", cmd())
	}
	if !msg.Skipped || msg.Account != nil || msg.Err != nil {
		t.Errorf("got %+v, want skipped with no account and no error", msg)
	}
	if m.waiting {
		t.Error("skip should not enter the waiting state")
	}
}

func TestEnterStartsWaiting(t *testing.T) {
	m := testLogin()
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.waiting {
		t.Error("enter should enter the waiting state")
	}
	if cmd == nil {
		t.Error("enter should start the flow command")
	}
}

func TestFailureReturnsToIdle(t *testing.T) {
	m := testLogin()
	m.waiting = true
	m, _ = m.Update(CompletedMsg{Err: auth.ErrCallbackTimeout})
	if m.waiting {
		t.Error("a failed flow should leave the waiting state")
	}
	if m.errMsg == "" {
		t.Error("a failed flow should surface the error")
	}
}

func TestKeysIgnoredWhileWaiting(t *testing.T) {
	m := testLogin()
	m.waiting = true
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter while waiting should not restart the flow")
	}
	if !m.waiting {
		t.Error("waiting state should persist")
	}
}
