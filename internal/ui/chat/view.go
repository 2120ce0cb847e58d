// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ollama-chat/internal/ui/styles"
	"github.com/jeranaias/ollama-chat/internal/util"
	"github.com/jeranaias/ollama-chat/internal/widget"
)

// View renders the chat window.
func (m Model) View() string {
	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if m.showParams {
		parts = append(parts, m.renderParams())
	}
	parts = append(parts, m.renderInput(), m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.title)
	model := m.ctrl.SelectedLabel()
	if model == "" {
		model = "loading models..."
	}
	width := m.width - util.StringWidth(m.title) - 6
	right := m.theme.HeaderModel.Render(util.TruncateWidth(model, max(width, 8)))

	line := title + "  " + right
	if m.status != "" && m.theme.GetLayoutMode() != styles.LayoutNarrow {
		line += "  " + m.theme.StatusBar.Render(util.TruncateWidth(m.status, max(m.width/3, 10)))
	}
	return m.theme.Header.Render(line)
}

// renderTranscript draws every entry: a role label followed by its rendered
// body.
func (m Model) renderTranscript() string {
	entries := m.ctrl.Transcript().Entries()
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderEntry(e widget.Entry) string {
	style := m.theme.RoleStyle(string(e.Role))
	switch e.Role {
	case widget.RoleUser:
		return style.Render("You") + "\n" + m.theme.Body.Render(e.Rendered)
	case widget.RoleAssistant:
		return style.Render("Assistant") + "\n" + m.theme.Body.Render(e.Rendered)
	case widget.RoleTyping:
		return style.Render(m.spinner.View() + " " + e.Rendered)
	case widget.RoleError:
		return style.Render("! " + e.Rendered)
	default:
		return style.Render("* " + e.Rendered)
	}
}

func (m Model) renderParams() string {
	title := m.theme.ParamsTitle.Render("Parameters (JSON)")
	return m.theme.ParamsPanel.Render(title + "\n" + m.params.View())
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Render(m.input.View())
}

func (m Model) renderHelp() string {
	if m.showParams {
		return m.theme.HelpText.Render(m.help.ShortHelpView(m.keys.ParamsHelp()))
	}
	return m.theme.HelpText.Render(m.help.View(m.keys))
}
