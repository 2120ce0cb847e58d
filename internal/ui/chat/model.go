// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-chat/internal/ui/styles"
	"github.com/jeranaias/ollama-chat/internal/widget"
)

// Options configures the chat window.
type Options struct {
	// Context bounds backend calls. Default: context.Background().
	Context context.Context

	// Theme overrides terminal detection.
	Theme *styles.Theme

	// ExportDir is where ctrl+e writes. Default: current directory.
	ExportDir string

	// Title is shown in the header. Default: "Ollama Chat".
	Title string

	// PreferredModel is selected after loading when the backend offers it.
	PreferredModel string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat window.
type Model struct {
	ctrl  *widget.Controller
	ctx   context.Context
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	title     string
	exportDir string
	preferred string

	// Dimensions
	width  int
	height int

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	params   textarea.Model
	spinner  spinner.Model

	showParams bool
	status     string
	lastID     string

	changes     <-chan struct{}
	unsubscribe func()
}

// New creates a chat window for ctrl. Call Close when the program exits.
func New(ctrl *widget.Controller, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Title == "" {
		opts.Title = "Ollama Chat"
	}

	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Prompt = "> "
	input.PromptStyle = opts.Theme.InputPrompt
	input.Focus()

	params := textarea.New()
	params.ShowLineNumbers = false
	params.SetHeight(8)

	sp := spinner.New(spinner.WithSpinner(styles.TypingSpinner.Spinner()))
	sp.Style = opts.Theme.TypingText

	changes, unsubscribe := ctrl.Transcript().Subscribe()

	m := Model{
		ctrl:        ctrl,
		ctx:         opts.Context,
		theme:       opts.Theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		title:       opts.Title,
		exportDir:   opts.ExportDir,
		preferred:   opts.PreferredModel,
		viewport:    viewport.New(80, 20),
		input:       input,
		params:      params,
		spinner:     sp,
		changes:     changes,
		unsubscribe: unsubscribe,
	}
	m.refresh()
	return m
}

// Init loads the model list and starts listening for transcript changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadModelsCmd(m.ctx, m.ctrl, m.preferred),
		waitForChange(m.changes),
		textinput.Blink,
	)
}

// Close stops the transcript subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Controller returns the controller the window draws.
func (m Model) Controller() *widget.Controller {
	return m.ctrl
}

// ShowingParams reports whether the parameter editor is open.
func (m Model) ShowingParams() bool {
	return m.showParams
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}
