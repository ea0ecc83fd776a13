// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// =============================================================================
// MODEL RESOLUTION TESTS
// =============================================================================

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name         string
		model        string
		deepResearch bool
		want         string
		wantErr      bool
	}{
		{"gpt", "gpt", false, "openai", false},
		{"gpt research", "gpt", true, "openai-research", false},
		{"gemini", "gemini", false, "gemini", false},
		{"gemini research", "gemini", true, "gemini-research", false},
		{"grok", "grok", false, "grok", false},
		{"unknown", "claude", false, "", true},
		{"empty", "", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveModel(tt.model, tt.deepResearch)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownModel) {
					t.Errorf("err = %v, want ErrUnknownModel", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveModel: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveModel(%q, %v) = %q, want %q", tt.model, tt.deepResearch, got, tt.want)
			}
		})
	}
}

// =============================================================================
// NORMALIZATION TESTS
// =============================================================================

func TestNormalizeReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare text", "hello", "hello"},
		{"quoted", `"hello"`, "hello"},
		{"one layer only", `""hello""`, `"hello"`},
		{"escaped newline", `line one\nline two`, "line one\nline two"},
		{"escaped tab", `a\tb`, "a\tb"},
		{"escaped quote", `say \"hi\"`, `say "hi"`},
		{"escaped backslash", `C:\\temp`, `C:\temp`},
		{"quoted and escaped", `"first\nsecond"`, "first\nsecond"},
		{"unknown escape preserved", `\d+`, `\d+`},
		{"trailing backslash preserved", `end\`, `end\`},
		{"whitespace trimmed", "  hi  ", "hi"},
		{"empty", "", ""},
		{"lone quote", `"`, `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeReply(tt.raw); got != tt.want {
				t.Errorf("NormalizeReply(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// =============================================================================
// PROJECT API TESTS
// =============================================================================

func TestListProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/project/list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("email"); got != "jane@example.com" {
			t.Errorf("email = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"new_user": false, "projects": [
			{"project_id": "1", "project_name": "earnings"},
			{"project_id": "2", "project_name": "filings"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL)
	projects, newUser, err := client.ListProjects(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if newUser {
		t.Error("newUser = true, want false")
	}
	if len(projects) != 2 || projects[0].Name != "earnings" {
		t.Errorf("projects = %+v", projects)
	}
}

func TestListProjectsNewUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"new_user": true, "projects": []}`))
	}))
	defer server.Close()

	projects, newUser, err := New(server.URL).ListProjects(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if !newUser {
		t.Error("newUser = false, want true")
	}
	if len(projects) != 0 {
		t.Errorf("projects = %+v, want empty", projects)
	}
}

func TestCreateProjectSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/project/create" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		for field, want := range map[string]string{
			"email":           "jane@example.com",
			"project_name":    "earnings",
			"description":     "Q3 earnings analysis",
			"project_purpose": "research",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("%s = %q, want %q", field, got, want)
			}
		}
		w.Write([]byte(`{"message": "project created"}`))
	}))
	defer server.Close()

	msg, err := New(server.URL).CreateProject(context.Background(), "jane@example.com", "earnings", "Q3 earnings analysis", "research")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if msg != "project created" {
		t.Errorf("message = %q", msg)
	}
}

func TestRenameAndDeleteProject(t *testing.T) {
	var sawRename, sawDelete bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/project/rename/42":
			sawRename = true
		case r.Method == http.MethodDelete && r.URL.Path == "/project/delete":
			if got := r.URL.Query().Get("project_id"); got != "42" {
				t.Errorf("project_id = %q", got)
			}
			sawDelete = true
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"message": "ok"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.RenameProject(context.Background(), "42", "renamed"); err != nil {
		t.Fatalf("RenameProject: %v", err)
	}
	if err := client.DeleteProject(context.Background(), "42"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if !sawRename || !sawDelete {
		t.Error("expected both rename and delete requests")
	}
}

// =============================================================================
// CHAT API TESTS
// =============================================================================

func TestAgentCallNormalizesReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/agent-call/openai-research" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("session_id"); got != "thread-1" {
			t.Errorf("session_id = %q", got)
		}
		if got := r.FormValue("prompt"); got != "hello" {
			t.Errorf("prompt = %q", got)
		}
		if got := r.FormValue("project_id"); got != "42" {
			t.Errorf("project_id = %q", got)
		}
		w.Write([]byte(`"first line\nsecond line"`))
	}))
	defer server.Close()

	reply, err := New(server.URL).AgentCall(context.Background(), "gpt", true, "thread-1", "hello", "42")
	if err != nil {
		t.Fatalf("AgentCall: %v", err)
	}
	if reply != "first line\nsecond line" {
		t.Errorf("reply = %q", reply)
	}
}

func TestAgentCallOmitsEmptyProjectID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if _, ok := r.MultipartForm.Value["project_id"]; ok {
			t.Error("project_id should be absent for plain threads")
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	if _, err := New(server.URL).AgentCall(context.Background(), "grok", false, "t1", "hi", ""); err != nil {
		t.Fatalf("AgentCall: %v", err)
	}
}

func TestAgentCallRejectsUnknownModel(t *testing.T) {
	_, err := New("http://127.0.0.1:1").AgentCall(context.Background(), "claude", false, "t1", "hi", "")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
}

func TestNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL).AgentCall(context.Background(), "gpt", false, "t1", "hi", "")
	if err == nil {
		t.Fatal("expected error")
	}
	// Every failure is terminal for that one operation.
	if got := calls.Load(); got != 1 {
		t.Errorf("backend saw %d calls, want exactly 1", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		_, _, err := New(server.URL).ListProjects(context.Background(), "a@b.com")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		server.Close()
	}
}

func TestListChatsAndTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"chats": [
			{"user_input": "what is EBITDA?", "bot_output": "\"Earnings before interest...\""},
			{"user_input": "thanks", "bot_output": "welcome"}
		]}`))
	}))
	defer server.Close()

	records, err := New(server.URL).ListChats(context.Background(), "42")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	messages := Transcript(records)
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want one per record", len(messages))
	}
	want := "what is EBITDA?\n\nEarnings before interest..."
	if messages[0].Content != want {
		t.Errorf("synthesized text = %q, want %q", messages[0].Content, want)
	}
}

// =============================================================================
// UPLOAD TESTS
// =============================================================================

func TestUploadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/project/upload-file" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("project_id"); got != "42" {
			t.Errorf("project_id = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		if header.Filename != "report.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.Write([]byte(`{"message": "uploaded"}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("quarterly numbers"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := New(server.URL).UploadFile(context.Background(), "42", path); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
}

func TestUploadFileSizeCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	if err := os.WriteFile(path, make([]byte, 2048), 0600); err != nil {
		t.Fatal(err)
	}

	client := New("http://127.0.0.1:1").WithMaxUploadBytes(1024)
	err := client.UploadFile(context.Background(), "42", path)
	if !errors.Is(err, ErrUploadTooLarge) {
		t.Errorf("err = %v, want ErrUploadTooLarge", err)
	}
}

func TestAuthHeaderSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer session-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"new_user": true, "projects": []}`))
	}))
	defer server.Close()

	client := New(server.URL).WithToken("session-token")
	if _, _, err := client.ListProjects(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
}
