// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// TermRenderer renders assistant markdown for ANSI terminals with glamour.
// Terminal control sequences are removed from all content first. Other roles,
// and assistant text glamour cannot render, are shown as plain text.
type TermRenderer struct {
	mu      sync.Mutex
	glamour *glamour.TermRenderer
}

// NewTermRenderer creates a terminal renderer.
//
// theme is "auto", "dark", "light" or "notty"; width is the word-wrap column.
// profile selects the color depth (termenv.Ascii disables color).
func NewTermRenderer(theme string, width int, profile termenv.Profile) (*TermRenderer, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(profile),
	}
	switch {
	case profile == termenv.Ascii:
		opts = append(opts, glamour.WithStandardStyle("notty"))
	case theme == "" || theme == "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(theme))
	}

	g, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &TermRenderer{glamour: g}, nil
}

// Render implements Renderer.
func (r *TermRenderer) Render(role Role, content string) string {
	content = StripControl(content)
	if role != RoleAssistant || r.glamour == nil {
		return content
	}
	r.mu.Lock()
	out, err := r.glamour.Render(content)
	r.mu.Unlock()
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// PlainRenderer shows content as plain text for every role, with terminal
// control sequences removed.
type PlainRenderer struct{}

// Render implements Renderer.
func (PlainRenderer) Render(_ Role, content string) string {
	return StripControl(content)
}

// StripControl removes ANSI escape sequences and C0/C1 control characters
// from s, keeping newlines and tabs.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || (r >= 0x7f && r < 0xa0) {
			return -1
		}
		return r
	}, ansi.Strip(s))
}
