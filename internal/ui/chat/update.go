// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-chat/internal/export"
	"github.com/jeranaias/ollama-chat/internal/widget"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func loadModelsCmd(ctx context.Context, ctrl *widget.Controller, preferred string) tea.Cmd {
	return func() tea.Msg {
		outcome := ctrl.LoadModels(ctx)
		if outcome == widget.LoadOK && preferred != "" {
			_ = ctrl.SelectModel(preferred)
		}
		return ModelsLoadedMsg{Outcome: outcome}
	}
}

func sendCmd(ctx context.Context, ctrl *widget.Controller) tea.Cmd {
	return func() tea.Msg {
		return SendDoneMsg{Outcome: ctrl.Send(ctx)}
	}
}

func clearCmd(ctx context.Context, ctrl *widget.Controller) tea.Cmd {
	return func() tea.Msg {
		return ClearDoneMsg{Outcome: ctrl.Clear(ctx)}
	}
}

func exportCmd(ctrl *widget.Controller, title, dir string) tea.Cmd {
	return func() tea.Msg {
		snap := export.NewSnapshot(title, ctrl.SelectedModel(), ctrl.Transcript().Entries())
		path, err := export.ExportToFile(snap, filepath.Join(dir, export.DefaultFilename(snap, ".html")), nil)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// waitForChange blocks until the transcript changes. A closed channel ends
// the loop.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return TranscriptChangedMsg{}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TranscriptChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case ModelsLoadedMsg:
		switch msg.Outcome {
		case widget.LoadOK:
			m.status = fmt.Sprintf("%d models available", len(m.ctrl.Models()))
		default:
			m.status = m.ctrl.SelectedLabel()
		}
		return m, nil

	case SendDoneMsg:
		m.refresh()
		if m.showParams {
			return m.toggleParams()
		}
		return m, nil

	case ClearDoneMsg:
		if msg.Outcome == widget.ClearDone {
			m.status = "Conversation cleared"
		}
		m.refresh()
		return m, nil

	case ExportDoneMsg:
		if msg.Err != nil {
			m.status = "Export failed: " + msg.Err.Error()
		} else {
			m.status = "Exported to " + msg.Path
		}
		return m, nil

	case spinner.TickMsg:
		if m.ctrl.Sending() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			return m, cmd
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)

	const (
		headerHeight    = 2
		inputAreaHeight = 3
		helpHeight      = 2
		paramsHeight    = 11
	)

	reserved := headerHeight + inputAreaHeight + helpHeight
	if m.showParams {
		reserved += paramsHeight
	}

	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-reserved, 1)
	m.input.Width = max(m.width-8, 10)
	m.params.SetWidth(max(m.width-4, 10))
	m.help.Width = m.width

	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Dismiss) && m.ctrl.Notices().Pending() > 0:
		m.ctrl.Notices().DismissAll()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleParam):
		return m.toggleParams()

	case key.Matches(msg, m.keys.ApplyParams) && m.showParams:
		if m.ctrl.ApplyParameters(m.params.Value()) == widget.ApplyApplied {
			m.params.SetValue(m.ctrl.ParametersText())
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ResetParams) && m.showParams:
		m.ctrl.ResetParameters()
		m.params.SetValue(m.ctrl.ParametersText())
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.CycleModel):
		if name := m.ctrl.CycleModel(); name != "" {
			m.status = "Model: " + name
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		return m, clearCmd(m.ctx, m.ctrl)

	case key.Matches(msg, m.keys.Export):
		m.status = "Exporting..."
		return m, exportCmd(m.ctrl, m.title, m.exportDir)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Send) && !m.showParams:
		return m.submit()
	}

	return m.updateFocused(msg)
}

// submit hands the input to the controller. The field is cleared here only
// when the controller is going to accept it, so a missing model keeps the
// text.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || m.ctrl.Sending() {
		return m, nil
	}

	m.ctrl.SetInput(text)
	if m.ctrl.SelectedModel() != "" {
		m.input.Reset()
	}
	return m, tea.Batch(sendCmd(m.ctx, m.ctrl), m.spinner.Tick)
}

func (m Model) toggleParams() (tea.Model, tea.Cmd) {
	m.showParams = !m.showParams
	var cmd tea.Cmd
	if m.showParams {
		m.params.SetValue(m.ctrl.ParametersText())
		m.input.Blur()
		cmd = m.params.Focus()
	} else {
		m.params.Blur()
		cmd = m.input.Focus()
	}

	if m.width > 0 {
		resized, _ := m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		m = resized.(Model)
	}
	return m, tea.Batch(cmd, textinput.Blink)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.showParams {
		m.params, cmd = m.params.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// refresh redraws the transcript into the viewport. Whenever the last entry
// changes the view jumps to the bottom, even if the user scrolled up.
func (m *Model) refresh() {
	last, _ := m.ctrl.Transcript().Last()
	follow := last.ID != m.lastID || m.viewport.AtBottom()
	m.lastID = last.ID

	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}
