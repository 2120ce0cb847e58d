// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat window for ollama-chat.

The Model is a Bubble Tea program that draws a widget.Controller: it forwards
key presses to the controller and redraws whenever the controller's
transcript changes.

# Key Components

## Model (model.go)

Holds the controller, the viewport, the message input, the parameter editor
and the typing spinner.

## Update Loop (update.go)

  - enter: send the input
  - ctrl+n: next model
  - ctrl+p: show or hide the parameter editor
  - ctrl+s / ctrl+r: apply or reset parameters
  - ctrl+l: clear the conversation
  - ctrl+e: export the transcript to HTML
  - esc: dismiss notices if any are showing, otherwise quit
  - ctrl+c: quit

Controller calls that talk to the backend run as tea.Cmds. Transcript
changes arrive through a subscription channel as TranscriptChangedMsg, so
notices that expire on their own still redraw the screen.

## View Rendering (view.go)

Header with the selected model, the transcript, the optional parameter
panel, the input box and a help line. The viewport jumps to the bottom
whenever an entry is appended.

# Usage

	ctrl := widget.New(backend, widget.Config{Renderer: termRenderer})
	p := tea.NewProgram(chat.New(ctrl, chat.Options{}), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
*/
package chat
