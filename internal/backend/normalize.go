// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "strings"

// NormalizeReply cleans a raw agent reply for display. Some agent
// routes return a JSON-encoded string rather than bare text, so the
// reply arrives wrapped in quotes with escaped control characters.
//
// Two steps, in order:
//  1. Strip one layer of enclosing double quotes, if present.
//  2. Unescape the literal backslash sequences \n, \t, \", and \\.
func NormalizeReply(raw string) string {
	s := strings.TrimSpace(raw)

	// Strip exactly one quote layer.
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	return unescape(s)
}

// unescape rewrites \n \t \" \\ into their literal characters. Unknown
// escapes are left untouched.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"':
			b.WriteByte('"')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
