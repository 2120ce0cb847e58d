// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers for
// ollama-chat.
//
// # Key Types
//
//   - Command: the commands main dispatches on
//   - Args: parsed global and command flags
//   - ArgParser: flag parsing for the words after a command
//   - ChatSession: the line-oriented chat driving a widget.Controller
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    err = cli.HandleChatCommand(args)
//	case cli.CmdServe:
//	    err = cli.HandleServe(args)
//	}
//
// Every command that supports --json prints a JSONResponse envelope.
package cli
