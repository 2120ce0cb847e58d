// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdServe
	CmdModels
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdServe:
		return "serve"
	case CmdModels:
		return "models"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	Model      string
	Backend    string
	ConfigPath string

	// serve flags. RateLimit is -1 when not given.
	Addr      string
	HistoryDB string
	OllamaURL string
	RateLimit int

	// tui/chat flags
	ExportDir string

	// config subcommand ("show", "path", "reset")
	Subcommand string

	// Unknown is the command word when Parse returns CmdUnknown.
	Unknown string

	// Err is a flag error found while parsing.
	Err error

	// Raw holds the arguments after the command word.
	Raw []string
}

var usageText = `ollama-chat - Chat with local Ollama models from the terminal

Usage:
  ollama-chat [command] [flags]

Commands:
  tui (default)       Full-screen chat window
  chat                Line-oriented chat (REPL)
  serve               Run the chat backend (/api/models, /api/chat, /api/clear)
  models              List models available through the backend
  config [show|path|reset]
                      Show, locate or reset the configuration file
  version             Show version information
  help                Show this help

Global Flags:
  -m, --model NAME    Preferred model (must be offered by the backend)
  --backend URL       Chat backend base URL (default: client.backend_url)
  --config PATH       Read configuration from PATH
  --json              Machine-readable output (models, config, version)
  -q, --quiet         Minimal output
  -v, --verbose       Log backend events to stderr

Serve Flags:
  --addr ADDR         Listen address (default: server.addr)
  --history FILE      SQLite history file (default: in memory)
  --ollama URL        Ollama base URL (default: server.ollama_url)
  --rate-limit N      Requests per minute per client, 0 disables

TUI/Chat Flags:
  --export-dir DIR    Directory for exported transcripts (default: .)

Chat Commands (REPL):
  /models             List models, marking the selected one
  /model <name>       Select a model
  /params             Show chat parameters as JSON
  /params set <json>  Merge a JSON object into the parameters
  /params reset       Restore default parameters
  /clear              Clear the conversation
  /export [file]      Save the transcript (.html, .md or .json)
  /help               Show chat commands
  /quit               Exit

Keys (TUI):
  enter send   ctrl+n next model   ctrl+p parameters   ctrl+s apply   ctrl+r reset
  ctrl+l clear   ctrl+e export   esc dismiss notice / quit

Environment:
  OLLAMA_CHAT_BACKEND   overrides client.backend_url
  OLLAMA_CHAT_ADDR      overrides server.addr
  OLLAMA_HOST           overrides server.ollama_url
  OLLAMA_CHAT_MODEL     overrides server.default_model

Examples:
  ollama-chat serve --history ~/.ollama-chat/history.db
  ollama-chat chat --model llama3
  ollama-chat models --json
  ollama-chat --backend http://gpu-box:5000

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	FprintUsage(os.Stdout)
}

// FprintUsage writes the usage text to w.
func FprintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("ollama-chat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments (without the program name) and
// returns the command and its args.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		parseClientArgs(&parsedArgs, remaining)
		return CmdTUI, parsedArgs

	case "chat", "repl":
		parseClientArgs(&parsedArgs, remaining)
		return CmdChat, parsedArgs

	case "serve", "server":
		parseServeArgs(&parsedArgs, remaining)
		return CmdServe, parsedArgs

	case "models", "ls":
		return CmdModels, parsedArgs

	case "config":
		parser := NewArgParser(remaining)
		parsedArgs.Subcommand = parser.Subcommand()
		return CmdConfig, parsedArgs

	case "version", "--version", "-V":
		return CmdVersion, parsedArgs

	case "help", "--help", "-h":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Unknown = cmd
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from anywhere in args and returns
// the rest in order.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	parsedArgs := Args{RateLimit: -1}

	// value returns the argument after i, advancing i.
	value := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "-m", "--model":
			parsedArgs.Model = value(&i)
		case "--backend":
			parsedArgs.Backend = value(&i)
		case "--config":
			parsedArgs.ConfigPath = value(&i)
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--backend="):
				parsedArgs.Backend = strings.TrimPrefix(arg, "--backend=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseClientArgs parses tui and chat flags.
func parseClientArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	args.ExportDir = parser.Flag("export-dir")
}

// parseServeArgs parses serve flags.
func parseServeArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	args.Addr = parser.Flag("addr")
	args.HistoryDB = parser.Flag("history")
	args.OllamaURL = parser.Flag("ollama")

	if parser.HasFlag("rate-limit") {
		n, err := parser.FlagInt("rate-limit")
		if err != nil || n < 0 {
			args.Err = NewValidationErrorWithExample("rate-limit", parser.Flag("rate-limit"),
				"must be a non-negative integer", "--rate-limit 60")
			return
		}
		args.RateLimit = n
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// HandleVersion handles the "version" command, with JSON output when asked.
func HandleVersion(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		NewJSONResponse("version", data).Print()
		return
	}
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}

// HandleUnknown reports an unknown command and exits with a usage error.
func HandleUnknown(args Args) {
	err := NewValidationErrorWithExample("command", args.Unknown, "unknown command", "ollama-chat help")
	HandleErrorAndExit(err, args.JSON)
}
