// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package widget implements the chat widget controller shared by every
// ollama-chat front end.
//
// The controller owns the state a chat window needs: the model selector, the
// message input, the transcript of rendered entries, the tuning parameters
// sent with each message, and short-lived status notices. Front ends (the
// bubbletea TUI, the line REPL) only forward user actions and draw the
// transcript; all sequencing lives here.
//
// # Key Types
//
//   - Controller: LoadModels, Send, ApplyParameters, ResetParameters, Clear
//   - Transcript: ordered entries with scroll-follow and change subscriptions
//   - Parameters: the JSON parameter object, shallow-merged on apply
//   - Notices: transcript entries that remove themselves after NoticeLifetime
//   - Renderer: HTMLRenderer (goldmark) and TermRenderer (glamour)
//   - Backend: HTTPBackend talks to the `serve` API
//
// # Send ordering
//
// Within one Send the user entry is appended before the request is issued and
// the typing placeholder is removed before the reply (or error) is appended.
// At most one Send is in flight; a second call returns OutcomeBusy without
// touching the transcript.
//
// # Usage
//
//	backend := widget.NewHTTPBackend("http://127.0.0.1:5000", nil)
//	ctrl := widget.New(backend, widget.Config{})
//	defer ctrl.Close()
//
//	ctrl.LoadModels(ctx)
//	ctrl.SetInput("hi")
//	switch ctrl.Send(ctx) {
//	case widget.OutcomeReplied:
//	    // last transcript entry is the rendered reply
//	}
package widget
