// ollama-chat - chat with local Ollama models from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/ollama-chat/internal/cli"
	"github.com/jeranaias/ollama-chat/internal/server"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	server.Version = Version
}

func main() {
	cmd, args := cli.Parse()

	if args.Err != nil {
		cli.HandleErrorAndExit(args.Err, args.JSON)
	}

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = cli.HandleTUI(args)
	case cli.CmdChat:
		err = cli.HandleChatCommand(args)
	case cli.CmdServe:
		err = cli.HandleServe(args)
	case cli.CmdModels:
		err = cli.HandleModels(args, os.Stdout)
	case cli.CmdConfig:
		err = cli.HandleConfig(args, os.Stdout)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		cli.HandleUnknown(args)
	}

	cli.HandleErrorAndExit(err, args.JSON)
}
