// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/export"
	"github.com/jeranaias/ollama-chat/internal/util"
	"github.com/jeranaias/ollama-chat/internal/widget"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	var buf strings.Builder
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	util.AtomicWriteFile(c.historyFile, []byte(buf.String()), 0600)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// ChatSession drives a widget.Controller from typed lines and prints each
// new transcript entry once.
type ChatSession struct {
	ctx       context.Context
	ctrl      *widget.Controller
	out       io.Writer
	title     string
	exportDir string
	quiet     bool

	// printed holds the IDs of entries already written to out.
	printed map[string]bool

	started time.Time
	sent    int
	replies int
}

// ChatSessionOptions configures NewChatSession.
type ChatSessionOptions struct {
	Title     string
	ExportDir string
	Quiet     bool
}

// NewChatSession creates a session writing to out.
func NewChatSession(ctx context.Context, ctrl *widget.Controller, out io.Writer, opts ChatSessionOptions) *ChatSession {
	if opts.Title == "" {
		opts.Title = "Ollama Chat"
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	return &ChatSession{
		ctx:       ctx,
		ctrl:      ctrl,
		out:       out,
		title:     opts.Title,
		exportDir: opts.ExportDir,
		quiet:     opts.Quiet,
		printed:   make(map[string]bool),
		started:   time.Now(),
	}
}

// Start loads the model list, selects preferred when the backend offers it,
// and prints the welcome banner and greeting.
func (s *ChatSession) Start(preferred string) {
	outcome := s.ctrl.LoadModels(s.ctx)
	if preferred != "" && outcome == widget.LoadOK {
		if err := s.ctrl.SelectModel(preferred); err != nil {
			fmt.Fprintf(s.out, "%s %v\n", WarningStyle.Render("[Warning]"), err)
		}
	}
	if !s.quiet {
		s.printWelcome()
	}
	s.flush()
}

// Handle processes one input line. It returns true when the user asked to quit.
func (s *ChatSession) Handle(line string) bool {
	input := strings.TrimSpace(line)
	switch {
	case input == "":
		return false
	case strings.HasPrefix(input, "/"):
		return s.handleSlashCommand(input)
	case strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit"):
		return true
	}

	s.ctrl.SetInput(input)
	if s.ctrl.SelectedModel() != "" && !s.quiet {
		fmt.Fprintln(s.out, DimStyle.Render(widget.TypingText))
	}
	switch s.ctrl.Send(s.ctx) {
	case widget.OutcomeReplied:
		s.sent++
		s.replies++
	case widget.OutcomeBackendError, widget.OutcomeNetworkError:
		s.sent++
	case widget.OutcomeNoModel:
		s.ctrl.SetInput("")
	}
	s.flush()
	return false
}

// Summary returns a one-line description of the session.
func (s *ChatSession) Summary() string {
	return fmt.Sprintf("%d messages sent, %d replies in %s", s.sent, s.replies, formatDuration(time.Since(s.started)))
}

// flush prints transcript entries not printed yet. User entries are not
// echoed; the prompt line already shows them.
func (s *ChatSession) flush() {
	entries := s.ctrl.Transcript().Entries()
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
		if s.printed[e.ID] {
			continue
		}
		s.printEntry(e)
	}
	s.printed = seen
}

func (s *ChatSession) printEntry(e widget.Entry) {
	switch e.Role {
	case widget.RoleUser, widget.RoleTyping:
		return
	case widget.RoleAssistant:
		fmt.Fprintln(s.out, roleStyle(e.Role).Render("Assistant"))
		fmt.Fprintln(s.out, e.Rendered)
		fmt.Fprintln(s.out)
	default:
		fmt.Fprintln(s.out, roleStyle(e.Role).Render(e.Rendered))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (s *ChatSession) handleSlashCommand(input string) bool {
	command, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case "/help", "/h", "/?", "/":
		s.printHelp()

	case "/quit", "/q", "/exit":
		return true

	case "/models":
		s.printModels()

	case "/model", "/m":
		s.handleModel(rest)

	case "/params", "/p":
		s.handleParams(rest)

	case "/clear", "/c":
		s.ctrl.Clear(s.ctx)
		s.flush()

	case "/export", "/e":
		s.handleExport(rest)

	default:
		fmt.Fprintf(s.out, "%s unknown command: %s (type /help for commands)\n",
			ErrorStyle.Render("[Error]"), command)
	}
	return false
}

func (s *ChatSession) printModels() {
	width := GetTerminalWidth() - 4
	selected := s.ctrl.SelectedModel()
	for _, opt := range s.ctrl.Models() {
		label := util.TruncateWidth(opt.Label, width)
		switch {
		case opt.Sentinel():
			fmt.Fprintf(s.out, "  %s\n", DimStyle.Render(label))
		case opt.Value == selected:
			fmt.Fprintf(s.out, "* %s\n", commandStyle.Render(label))
		default:
			fmt.Fprintf(s.out, "  %s\n", label)
		}
	}
}

func (s *ChatSession) handleModel(name string) {
	if name == "" {
		fmt.Fprintf(s.out, "%s %s\n", InfoStyle.Render("[Model]"), commandStyle.Render(s.ctrl.SelectedLabel()))
		return
	}
	if err := s.ctrl.SelectModel(name); err != nil {
		fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		return
	}
	fmt.Fprintf(s.out, "%s Switched to model: %s\n", commandStyle.Render("[OK]"), name)
}

func (s *ChatSession) handleParams(rest string) {
	sub, arg, _ := strings.Cut(rest, " ")
	switch strings.ToLower(sub) {
	case "":
		fmt.Fprintln(s.out, s.ctrl.ParametersText())
	case "set":
		if s.ctrl.ApplyParameters(arg) == widget.ApplyNoop {
			fmt.Fprintf(s.out, "%s /params set {\"options\":{\"temperature\":0.2}}\n", InfoStyle.Render("Usage:"))
			return
		}
		s.flush()
	case "reset":
		s.ctrl.ResetParameters()
		s.flush()
		fmt.Fprintln(s.out, s.ctrl.ParametersText())
	default:
		fmt.Fprintf(s.out, "%s unknown /params subcommand: %s\n", ErrorStyle.Render("[Error]"), sub)
	}
}

func (s *ChatSession) handleExport(path string) {
	snap := export.NewSnapshot(s.title, s.ctrl.SelectedModel(), s.ctrl.Transcript().Entries())
	if path == "" {
		path = filepath.Join(s.exportDir, export.DefaultFilename(snap, ".html"))
	}
	written, err := export.ExportToFile(snap, path, export.DefaultOptions())
	if err != nil {
		fmt.Fprintf(s.out, "%s export failed: %v\n", ErrorStyle.Render("[Error]"), err)
		return
	}
	fmt.Fprintf(s.out, "%s Exported to %s\n", commandStyle.Render("[OK]"), written)
}

// =============================================================================
// DISPLAY
// =============================================================================

func (s *ChatSession) printWelcome() {
	fmt.Fprintln(s.out, welcomeStyle.Render(s.title))
	fmt.Fprintln(s.out, InfoStyle.Render(strings.Repeat("─", 30)))
	fmt.Fprintf(s.out, "%s %s\n", InfoStyle.Render("Model:"), commandStyle.Render(s.ctrl.SelectedLabel()))
	fmt.Fprintln(s.out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(s.out)
}

func (s *ChatSession) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/models", "List models"},
		{"/model [name]", "Show or switch model"},
		{"/params", "Show parameters"},
		{"/params set <json>", "Merge a JSON object into the parameters"},
		{"/params reset", "Restore default parameters"},
		{"/clear, /c", "Clear the conversation"},
		{"/export [file]", "Save the transcript (.html, .md, .json)"},
		{"/help, /h", "Show this help"},
		{"/quit, /q", "Exit chat"},
	}

	fmt.Fprintln(s.out, SectionStyle.Render("Available Commands"))
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-20s", c.cmd)),
			InfoStyle.Render(c.desc))
	}
	fmt.Fprintln(s.out)
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleChatCommand runs the line-oriented chat against the configured backend.
// With a terminal on stdin it uses liner for editing and history; otherwise
// it reads lines from stdin until EOF.
func HandleChatCommand(args Args) error {
	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		return err
	}

	ctrl := NewController(cfg, args, GetTerminalWidth()-2)
	defer ctrl.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := NewChatSession(ctx, ctrl, os.Stdout, ChatSessionOptions{
		ExportDir: args.ExportDir,
		Quiet:     args.Quiet,
	})
	session.Start(args.Model)

	if !IsTTY() {
		return session.Run(os.Stdin)
	}

	input := NewChatCLI()
	defer input.Close()
	input.line.SetCompleter(session.Complete)

	for {
		line, err := input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			break
		}
		if session.Handle(line) {
			break
		}
	}

	if !args.Quiet {
		fmt.Println(DimStyle.Render(session.Summary()))
	}
	return nil
}

// Run feeds every line of r to Handle until EOF or a quit command.
func (s *ChatSession) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if s.Handle(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// NewController builds a widget controller for the configured backend.
// wrap caps the markdown word-wrap column for terminal rendering.
func NewController(cfg *config.Config, args Args, wrap int) *widget.Controller {
	width := cfg.UI.WordWrap
	if wrap > 0 && wrap < width {
		width = wrap
	}

	var renderer widget.Renderer = widget.PlainRenderer{}
	if tr, err := widget.NewTermRenderer(cfg.UI.Theme, width, GetColorProfile()); err == nil {
		renderer = tr
	}

	var logger *log.Logger
	if args.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	backend := widget.NewHTTPBackend(cfg.Client.BackendURL, &http.Client{Timeout: cfg.RequestTimeout()})
	return widget.New(backend, widget.Config{
		Renderer: renderer,
		Logger:   logger,
	})
}
