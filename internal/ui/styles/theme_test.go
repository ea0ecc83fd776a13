// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewTheme(t *testing.T) {
	th := NewTheme()
	if th == nil {
		t.Fatal("NewTheme returned nil")
	}
	// Spot-check that styles were initialized.
	if th.SidebarSelected.GetBold() != true {
		t.Error("SidebarSelected should be bold")
	}
	if th.FailedBubble.GetForeground() != Rose {
		t.Error("FailedBubble should use the error color")
	}
}

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{79, LayoutNarrow},
		{80, LayoutWide},
		{160, LayoutWide},
	}

	th := NewTheme()
	for _, tt := range tests {
		th.SetSize(tt.width, 40)
		if got := th.GetLayoutMode(); got != tt.want {
			t.Errorf("GetLayoutMode(width=%d) = %v, want %v", tt.width, got, tt.want)
		}
	}
}
