// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "fmt"

// Models maps the UI's friendly model names to the backend's agent
// identifiers.
var Models = map[string]string{
	"gpt":    "openai",
	"gemini": "gemini",
	"grok":   "grok",
}

// ModelNames lists the friendly names in display order.
var ModelNames = []string{"gpt", "gemini", "grok"}

// DeepResearchSuffix is appended to the agent identifier when deep
// research is toggled on.
const DeepResearchSuffix = "-research"

// ResolveModel maps a friendly model name to the backend agent
// identifier, applying the deep-research variant when requested.
func ResolveModel(name string, deepResearch bool) (string, error) {
	agent, ok := Models[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	if deepResearch {
		agent += DeepResearchSuffix
	}
	return agent, nil
}

// ModelDisplayName returns the human-readable name for a friendly
// model identifier.
func ModelDisplayName(name string) string {
	switch name {
	case "gpt":
		return "ChatGPT"
	case "gemini":
		return "Gemini"
	case "grok":
		return "Grok"
	default:
		return name
	}
}
