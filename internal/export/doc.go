// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat transcript to a file.
//
// A Snapshot is taken from the widget transcript; transient notices and the
// typing placeholder are left out. Formats are chosen by file extension.
//
// # Supported Formats
//
//   - HTML (.html, .htm): standalone page, entries rendered by widget.HTMLRenderer
//   - Markdown (.md): YAML front matter plus one section per entry
//   - JSON (.json): machine-readable entry list
//
// # Usage
//
//	snap := export.NewSnapshot("Chat", ctrl.SelectedModel(), ctrl.Transcript().Entries())
//	path, err := export.ExportToFile(snap, "chat.html", nil)
package export
