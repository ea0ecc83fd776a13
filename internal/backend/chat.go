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
	"time"

	"github.com/fininsight/finchat/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatRecord is one stored exchange as the backend returns it: the
// user's input paired with the bot's reply.
type ChatRecord struct {
	UserInput string `json:"user_input"`
	BotOutput string `json:"bot_output"`
	CreatedAt string `json:"created_at,omitempty"`
}

// chatListResponse is the GET /chat/list payload.
type chatListResponse struct {
	Chats []ChatRecord `json:"chats"`
}

// =============================================================================
// CHAT HISTORY
// =============================================================================

// ListChats fetches the stored chat history for a project.
func (c *Client) ListChats(ctx context.Context, projectID string) ([]ChatRecord, error) {
	u, err := c.endpoint("chat", "list")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("project_id", projectID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	status, body, err := c.do(c.httpClient, req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var parsed chatListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chat list: %w", err)
	}
	return parsed.Chats, nil
}

// Transcript converts stored exchange records into an ordered message
// list: each record becomes one synthesized assistant message whose
// text carries both turns of the exchange.
func Transcript(records []ChatRecord) []*model.Message {
	messages := make([]*model.Message, 0, len(records))
	for _, rec := range records {
		text := rec.UserInput + "\n\n" + NormalizeReply(rec.BotOutput)
		msg := model.NewMessage(model.RoleAssistant, text)
		if ts, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
			msg.Timestamp = ts
		}
		messages = append(messages, msg)
	}
	return messages
}

// =============================================================================
// AGENT CALLS
// =============================================================================

// AgentCall sends a prompt to the named agent and returns the
// normalized reply text. modelName is the friendly name ("gpt",
// "gemini", "grok"); deepResearch selects the research variant.
//
// The call is throttled by the client's limiter and carries the agent
// timeout. There is no retry: the caller resolves its placeholder from
// exactly one outcome.
func (c *Client) AgentCall(ctx context.Context, modelName string, deepResearch bool, sessionID, prompt, projectID string) (string, error) {
	agent, err := ResolveModel(modelName, deepResearch)
	if err != nil {
		return "", err
	}

	if err := c.waitAgentSlot(ctx); err != nil {
		return "", err
	}

	u, err := c.endpoint("chat", "agent-call", agent)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"session_id": sessionID,
		"prompt":     prompt,
	}
	if projectID != "" {
		fields["project_id"] = projectID
	}
	for field, value := range fields {
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

	status, body, err := c.do(c.agentClient, req)
	if err != nil {
		return "", err
	}
	if err := checkStatus(status, body); err != nil {
		return "", err
	}

	return NormalizeReply(string(body)), nil
}
