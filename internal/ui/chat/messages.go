// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/ollama-chat/internal/widget"

// TranscriptChangedMsg signals that the controller's transcript changed.
type TranscriptChangedMsg struct{}

// ModelsLoadedMsg carries the result of the startup model listing.
type ModelsLoadedMsg struct {
	Outcome widget.LoadOutcome
}

// SendDoneMsg signals that a send finished.
type SendDoneMsg struct {
	Outcome widget.SendOutcome
}

// ClearDoneMsg signals that a clear finished.
type ClearDoneMsg struct {
	Outcome widget.ClearOutcome
}

// ExportDoneMsg carries the result of an export.
type ExportDoneMsg struct {
	Path string
	Err  error
}
