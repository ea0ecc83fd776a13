// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists standalone threads and their transcripts in
// a local SQLite database. Project conversations live on the backend
// and are never written here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/fininsight/finchat/internal/model"
)

// ErrThreadNotFound is returned when a thread is not in the database.
var ErrThreadNotFound = errors.New("thread not found")

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS threads (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id        TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    seq       INTEGER NOT NULL,
    role      TEXT NOT NULL,
    content   TEXT NOT NULL,
    status    TEXT NOT NULL,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);
`

// =============================================================================
// THREAD STORE
// =============================================================================

// ThreadStore handles thread persistence.
type ThreadStore struct {
	db *sql.DB
}

// Open opens (or creates) the thread database at path.
func Open(path string) (*ThreadStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &ThreadStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ThreadStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a thread and its transcript, replacing any prior copy.
// Pending placeholders are skipped: a reply that has not arrived is not
// durable state, and restarting the client abandons the in-flight call.
func (s *ThreadStore) Save(ctx context.Context, th *model.Thread) error {
	if th.IsProjectThread() {
		return nil // backend-owned, nothing to persist
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at`,
		th.ID, th.Title, th.CreatedAt.UnixMilli(), th.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, th.ID); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, thread_id, seq, role, content, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, msg := range th.Messages {
		if msg.IsPending() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, msg.ID, th.ID, seq,
			string(msg.Role), msg.Content, string(msg.Status), msg.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		seq++
	}

	return tx.Commit()
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a thread with its full transcript.
func (s *ThreadStore) Load(ctx context.Context, id string) (*model.Thread, error) {
	th := &model.Thread{ID: id}
	var created, updated int64

	err := s.db.QueryRowContext(ctx,
		`SELECT title, created_at, updated_at FROM threads WHERE id = ?`, id).
		Scan(&th.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	th.CreatedAt = time.UnixMilli(created)
	th.UpdatedAt = time.UnixMilli(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, status, timestamp
		FROM messages WHERE thread_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg model.Message
		var role, status string
		var ts int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &status, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.Status = model.Status(status)
		msg.Timestamp = time.UnixMilli(ts)
		th.Messages = append(th.Messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	return th, nil
}

// LoadAll retrieves every persisted thread, most recently updated first.
func (s *ThreadStore) LoadAll(ctx context.Context) ([]*model.Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := make([]*model.Thread, 0, len(ids))
	for _, id := range ids {
		th, err := s.Load(ctx, id)
		if err != nil {
			continue // skip corrupted rows
		}
		threads = append(threads, th)
	}
	return threads, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a thread and its transcript.
func (s *ThreadStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrThreadNotFound
	}
	return nil
}
