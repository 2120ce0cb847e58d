// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat front ends and the
// backend server.
//
//   - AtomicWriteFile: crash-safe file writes (config, transcript export)
//   - TruncateWidth: display-width aware truncation for terminal headers
//   - TruncateRunes: UTF-8 safe truncation for log lines
package util
