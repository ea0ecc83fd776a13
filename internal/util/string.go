// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// UNICODE: project and thread names are frequently Hangul, which renders
// double-width in terminals. All truncation here is display-width aware.

// TruncateWidth truncates a string to a maximum display width in terminal
// columns, appending "..." when truncated. Double-width (CJK) characters
// count as 2 columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// TruncateRunes truncates a string to a maximum number of runes,
// appending "..." when truncated. Safe for UTF-8: counts characters,
// not bytes.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// PadWidth pads a string with spaces to the given display width.
// Strings already at or past the width are returned unchanged.
func PadWidth(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// StringWidth returns the display width of a string in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// NormalizeInput prepares user-typed text for dispatch: trims surrounding
// whitespace and applies NFC normalization so composed Hangul typed through
// different IMEs compares and renders consistently.
func NormalizeInput(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
