// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// User-visible strings.
const (
	Greeting         = "Hello! I'm your Ollama chat assistant. How can I help you today?"
	TypingText       = "Assistant is typing..."
	MsgSelectModel   = "Please select a model first"
	MsgNetworkError  = "Network error: "
	MsgClearError    = "Error clearing chat: "
	MsgParamsApplied = "Parameters applied successfully!"
	MsgParamsInvalid = "Invalid JSON format. Please check your syntax."
	MsgParamsReset   = "Parameters reset to defaults."
)

// =============================================================================
// OUTCOMES
// =============================================================================

// SendOutcome reports what Send did.
type SendOutcome int

const (
	OutcomeIgnored      SendOutcome = iota // input was blank
	OutcomeBusy                            // another send is in flight
	OutcomeNoModel                         // no model selected, error shown
	OutcomeReplied                         // assistant reply appended
	OutcomeBackendError                    // backend returned {"error": ...}
	OutcomeNetworkError                    // request failed or reply was not JSON
)

func (o SendOutcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeBusy:
		return "busy"
	case OutcomeNoModel:
		return "no_model"
	case OutcomeReplied:
		return "replied"
	case OutcomeBackendError:
		return "backend_error"
	case OutcomeNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// LoadOutcome reports what LoadModels did.
type LoadOutcome int

const (
	LoadOK LoadOutcome = iota
	LoadEmpty
	LoadFailed
)

// ApplyOutcome reports what ApplyParameters did.
type ApplyOutcome int

const (
	ApplyNoop ApplyOutcome = iota
	ApplyApplied
	ApplyInvalid
)

// ClearOutcome reports what Clear did.
type ClearOutcome int

const (
	ClearDone ClearOutcome = iota
	ClearFailed
)

// =============================================================================
// CONFIG
// =============================================================================

// Config tunes a Controller. The zero value is usable.
type Config struct {
	// Renderer renders entries. Default: NewHTMLRenderer().
	Renderer Renderer

	// Scheduler drives notice expiry. Default: SystemScheduler().
	Scheduler Scheduler

	// NoticeLifetime overrides how long notices stay. Default: NoticeLifetime.
	NoticeLifetime time.Duration

	// Greeting is the assistant message shown at startup and after Clear.
	Greeting string

	// OnInputFocus is called when a send finishes, on every path.
	OnInputFocus func()

	// Logger receives event lines. Default: discard.
	Logger *log.Logger
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the chat widget state machine. It is safe for concurrent use.
type Controller struct {
	backend    Backend
	transcript *Transcript
	notices    *Notices
	greeting   string
	onFocus    func()
	logger     *log.Logger

	mu       sync.Mutex
	selector Selector
	input    string
	params   Parameters

	sending atomic.Bool
}

// New creates a controller whose transcript starts with the greeting.
func New(backend Backend, cfg Config) *Controller {
	if cfg.Renderer == nil {
		cfg.Renderer = NewHTMLRenderer()
	}
	if cfg.Greeting == "" {
		cfg.Greeting = Greeting
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	t := NewTranscript(cfg.Renderer)
	c := &Controller{
		backend:    backend,
		transcript: t,
		notices:    NewNotices(t, cfg.Scheduler, cfg.NoticeLifetime),
		greeting:   cfg.Greeting,
		onFocus:    cfg.OnInputFocus,
		logger:     cfg.Logger,
		params:     DefaultParameters(),
	}
	t.Append(RoleAssistant, c.greeting)
	return c
}

// Transcript returns the entries view.
func (c *Controller) Transcript() *Transcript {
	return c.transcript
}

// Notices returns the transient notice manager.
func (c *Controller) Notices() *Notices {
	return c.notices
}

// Close cancels pending notice timers.
func (c *Controller) Close() {
	c.notices.Close()
}

// =============================================================================
// MODEL SELECTOR
// =============================================================================

// LoadModels fetches the model list once and fills the selector.
func (c *Controller) LoadModels(ctx context.Context) LoadOutcome {
	reply, err := c.backend.ListModels(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err != nil:
		c.logger.Printf("MODELS_LOAD_FAILED | error=%v", err)
		c.selector.setSentinel(SentinelLoadError)
		return LoadFailed
	case len(reply.Models) == 0:
		if reply.Error != "" {
			c.logger.Printf("MODELS_LOAD_EMPTY | error=%q", reply.Error)
		}
		c.selector.SetModels(nil)
		return LoadEmpty
	default:
		c.selector.SetModels(reply.Models)
		c.logger.Printf("MODELS_LOADED | count=%d default=%s", len(reply.Models), reply.Models[0])
		return LoadOK
	}
}

// Models returns the selector options.
func (c *Controller) Models() []Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector.Options()
}

// SelectedModel returns the selected model name, "" if none.
func (c *Controller) SelectedModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector.Value()
}

// SelectedLabel returns the label shown in the selector.
func (c *Controller) SelectedLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector.Label()
}

// SelectModel selects a model by name.
func (c *Controller) SelectModel(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector.Select(name)
}

// CycleModel selects the next model and returns its name.
func (c *Controller) CycleModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector.Cycle()
}

// =============================================================================
// INPUT
// =============================================================================

// SetInput replaces the input field text.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Input returns the input field text.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	return c.sending.Load()
}

// =============================================================================
// SEND
// =============================================================================

// Send submits the input field to the backend and blocks until the reply
// (or failure) has been appended to the transcript.
func (c *Controller) Send(ctx context.Context) SendOutcome {
	c.mu.Lock()
	text := strings.TrimSpace(c.input)
	if text == "" {
		c.mu.Unlock()
		return OutcomeIgnored
	}
	model := c.selector.Value()
	if model == "" {
		c.mu.Unlock()
		c.transcript.Append(RoleError, MsgSelectModel)
		return OutcomeNoModel
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return OutcomeBusy
	}
	params := c.params.JSON()
	c.input = ""
	c.mu.Unlock()

	defer c.finishSend()

	c.transcript.Append(RoleUser, text)
	typing := c.transcript.Append(RoleTyping, TypingText)

	start := time.Now()
	reply, err := c.backend.Chat(ctx, ChatPayload{
		Message:    text,
		Model:      model,
		Parameters: params,
	})

	c.transcript.Remove(typing.ID)

	if err != nil {
		c.logger.Printf("SEND_FAILED | model=%s error=%v", model, err)
		c.transcript.Append(RoleError, MsgNetworkError+networkCause(err))
		return OutcomeNetworkError
	}
	if reply.Error != "" {
		c.logger.Printf("SEND_REJECTED | model=%s error=%q", model, reply.Error)
		c.transcript.Append(RoleError, reply.Error)
		return OutcomeBackendError
	}

	c.logger.Printf("SEND_OK | model=%s chars=%d duration=%s", model, len(reply.Response), time.Since(start).Round(time.Millisecond))
	c.transcript.Append(RoleAssistant, reply.Response)
	return OutcomeReplied
}

func (c *Controller) finishSend() {
	c.sending.Store(false)
	if c.onFocus != nil {
		c.onFocus()
	}
}

// networkCause strips the operation prefix from backend errors.
func networkCause(err error) string {
	var be *BackendError
	if errors.As(err, &be) && be.Cause != nil {
		return be.Cause.Error()
	}
	return err.Error()
}

// =============================================================================
// PARAMETERS
// =============================================================================

// Parameters returns a copy of the current parameters.
func (c *Controller) Parameters() Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Clone()
}

// ParametersText returns the editor text for the current parameters.
func (c *Controller) ParametersText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Text()
}

// ApplyParameters parses text as a JSON object and shallow-merges it onto
// the current parameters. Invalid input leaves them unchanged.
func (c *Controller) ApplyParameters(text string) ApplyOutcome {
	text = strings.TrimSpace(text)
	if text == "" {
		return ApplyNoop
	}

	parsed, err := ParseParameters(text)
	if err != nil {
		c.logger.Printf("PARAMS_INVALID | error=%v", err)
		c.notices.Show(RoleError, MsgParamsInvalid)
		return ApplyInvalid
	}

	c.mu.Lock()
	c.params = c.params.Merge(parsed)
	c.mu.Unlock()

	c.notices.Show(RoleSuccess, MsgParamsApplied)
	return ApplyApplied
}

// ResetParameters restores the default parameters.
func (c *Controller) ResetParameters() {
	c.mu.Lock()
	c.params = DefaultParameters()
	c.mu.Unlock()

	c.notices.Show(RoleInfo, MsgParamsReset)
}

// =============================================================================
// CLEAR
// =============================================================================

// Clear asks the backend to drop its conversation and, once it answers,
// replaces the transcript with the greeting. If the backend cannot be reached
// the transcript is kept and an error entry is appended.
func (c *Controller) Clear(ctx context.Context) ClearOutcome {
	if err := c.backend.ClearSession(ctx); err != nil {
		c.logger.Printf("CLEAR_FAILED | error=%v", err)
		c.transcript.Append(RoleError, MsgClearError+networkCause(err))
		return ClearFailed
	}

	c.notices.CancelAll()
	c.transcript.Reset(RoleAssistant, c.greeting)
	c.logger.Printf("CLEARED")
	return ClearDone
}
