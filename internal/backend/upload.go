// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// ErrUploadTooLarge indicates the file exceeds the configured cap.
var ErrUploadTooLarge = errors.New("file exceeds upload size limit")

// UploadFile uploads a local file into a project's document set.
// Single-shot: no progress reporting, no resumability. The size cap is
// enforced before any bytes leave the machine.
func (c *Client) UploadFile(ctx context.Context, projectID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot upload a directory: %s", path)
	}
	if c.maxUploadBytes > 0 && info.Size() > c.maxUploadBytes {
		return fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrUploadTooLarge, filepath.Base(path), info.Size(), c.maxUploadBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("project_id", projectID); err != nil {
		return fmt.Errorf("failed to write form field: %w", err)
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	u, err := c.endpoint("project", "upload-file")
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	status, body, err := c.do(c.agentClient, req)
	if err != nil {
		return err
	}
	return checkStatus(status, body)
}
