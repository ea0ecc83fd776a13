// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides shared helpers for the finchat client:
// atomic file writes for durable client state, and Unicode-aware
// string handling for CJK project and thread names.
package util
