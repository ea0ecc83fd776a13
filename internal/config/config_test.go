// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFromPathTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
default_model = "gemini"

[backend]
url = "https://chat.example.com"
timeout_secs = 5

[ui]
theme = "light"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.DefaultModel != "gemini" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Backend.URL != "https://chat.example.com" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.TimeoutSecs != 5 {
		t.Errorf("TimeoutSecs = %d", cfg.Backend.TimeoutSecs)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %q", cfg.UI.Theme)
	}

	// Unset fields inherit defaults.
	if cfg.Backend.AgentTimeoutSecs != Default().Backend.AgentTimeoutSecs {
		t.Errorf("AgentTimeoutSecs = %d, want default", cfg.Backend.AgentTimeoutSecs)
	}
}

func TestLoadFromPathJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{"backend": {"url": "http://10.0.0.5:8000"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Backend.URL != "http://10.0.0.5:8000" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
}

func TestValidateRejectsBadURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative", "chat.example.com"},
		{"bad scheme", "ftp://chat.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Backend.URL = tt.url
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate accepted backend URL %q", tt.url)
			}
		})
	}
}

func TestValidateRejectsBadTheme(t *testing.T) {
	cfg := Default()
	cfg.UI.Theme = "solarized"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted unknown theme")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Auth.CallbackPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted out-of-range callback port")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FINCHAT_BACKEND_URL", "https://override.example.com")
	t.Setenv("FINCHAT_MODEL", "grok")
	t.Setenv("FINCHAT_THEME", "auto")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Backend.URL != "https://override.example.com" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.DefaultModel != "grok" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("Theme = %q", cfg.UI.Theme)
	}
}

func TestSaveAndReloadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.DefaultModel = "gemini"
	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.DefaultModel != "gemini" {
		t.Errorf("round-trip DefaultModel = %q", loaded.DefaultModel)
	}

	// SECURITY: saved config must be owner-only.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}
}

func TestGlobalSetAndReset(t *testing.T) {
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	custom := Default()
	custom.DefaultModel = "grok"
	SetGlobal(custom)

	if got := Global(); got.DefaultModel != "grok" {
		t.Errorf("Global().DefaultModel = %q", got.DefaultModel)
	}
}
