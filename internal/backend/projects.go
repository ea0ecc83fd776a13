// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/fininsight/finchat/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// projectListResponse is the GET /project/list payload.
type projectListResponse struct {
	NewUser  bool            `json:"new_user"`
	Projects []model.Project `json:"projects"`
}

// renameRequest is the PUT /project/rename/{id} payload.
type renameRequest struct {
	ProjectName string `json:"project_name"`
}

// messageResponse is the generic acknowledgement payload.
type messageResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// PROJECT OPERATIONS
// =============================================================================

// ListProjects fetches the projects owned by email. The newUser flag
// is true when the backend has never seen this email before.
func (c *Client) ListProjects(ctx context.Context, email string) (projects []model.Project, newUser bool, err error) {
	u, err := c.endpoint("project", "list")
	if err != nil {
		return nil, false, err
	}
	q := u.Query()
	q.Set("email", email)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	status, body, err := c.do(c.httpClient, req)
	if err != nil {
		return nil, false, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, false, err
	}

	var parsed projectListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("failed to parse project list: %w", err)
	}
	return parsed.Projects, parsed.NewUser, nil
}

// CreateProject creates a project for email and returns the backend's
// acknowledgement message. The backend assigns the project ID; callers
// re-list to observe it.
func (c *Client) CreateProject(ctx context.Context, email, name, description, purpose string) (string, error) {
	u, err := c.endpoint("project", "create")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"email":           email,
		"project_name":    name,
		"description":     description,
		"project_purpose": purpose,
	} {
		if err := w.WriteField(field, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", field, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	status, body, err := c.do(c.httpClient, req)
	if err != nil {
		return "", err
	}
	if err := checkStatus(status, body); err != nil {
		return "", err
	}

	var parsed messageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse create response: %w", err)
	}
	return parsed.Message, nil
}

// RenameProject renames a project.
func (c *Client) RenameProject(ctx context.Context, projectID, newName string) error {
	u, err := c.endpoint("project", "rename", projectID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(renameRequest{ProjectName: newName})
	if err != nil {
		return fmt.Errorf("failed to encode rename request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	return checkStatus(status, body)
}

// DeleteProject deletes a project and its chat history.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	u, err := c.endpoint("project", "delete")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("project_id", projectID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	status, body, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	return checkStatus(status, body)
}
