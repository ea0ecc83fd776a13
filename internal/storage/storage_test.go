// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fininsight/finchat/internal/model"
)

func testStore(t *testing.T) *ThreadStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "threads.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th := model.NewThread()
	th.AddUserMessage("hello")
	th.AddMessage(model.NewMessage(model.RoleAssistant, "hi there"))

	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, th.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Title != th.Title {
		t.Errorf("title = %q, want %q", got.Title, th.Title)
	}
	if got.MessageCount() != 2 {
		t.Fatalf("message count = %d", got.MessageCount())
	}
	if got.Messages[0].Content != "hello" || got.Messages[1].Content != "hi there" {
		t.Errorf("transcript order wrong: %+v", got.Messages)
	}
	if got.Messages[1].Role != model.RoleAssistant {
		t.Errorf("role = %q", got.Messages[1].Role)
	}
}

func TestSaveSkipsPendingPlaceholders(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th := model.NewThread()
	th.AddUserMessage("question")
	th.AddPlaceholder()

	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, th.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MessageCount() != 1 {
		t.Errorf("pending placeholder persisted: %d messages", got.MessageCount())
	}
	if got.HasPending() {
		t.Error("loaded transcript should have no pending messages")
	}
}

func TestSaveReplacesTranscript(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th := model.NewThread()
	th.AddUserMessage("first")
	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Save again with more messages; no duplication.
	th.AddMessage(model.NewMessage(model.RoleAssistant, "reply"))
	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := s.Load(ctx, th.ID)
	if got.MessageCount() != 2 {
		t.Errorf("message count = %d, want 2", got.MessageCount())
	}
}

func TestSaveIgnoresProjectThreads(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th := model.NewProjectThread("42")
	th.AddMessage(model.NewMessage(model.RoleAssistant, "backend history"))

	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(ctx, th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("project thread should not be persisted, err = %v", err)
	}
}

func TestLoadAllOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := model.NewThread()
	older.SetTitle("older")
	newer := model.NewThread()
	newer.SetTitle("newer")
	newer.UpdatedAt = newer.UpdatedAt.Add(time.Second)

	if err := s.Save(ctx, older); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, newer); err != nil {
		t.Fatalf("Save: %v", err)
	}

	threads, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("len = %d", len(threads))
	}
	if threads[0].Title != "newer" {
		t.Errorf("order wrong: %q first", threads[0].Title)
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th := model.NewThread()
	th.AddUserMessage("bye")
	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete(ctx, th.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("err = %v, want ErrThreadNotFound", err)
	}
	if err := s.Delete(ctx, th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("double delete err = %v", err)
	}
}
