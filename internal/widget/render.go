// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// =============================================================================
// RENDERER INTERFACE
// =============================================================================

// Renderer turns entry content into its display form for one front end.
type Renderer interface {
	Render(role Role, content string) string
}

// =============================================================================
// HTML ESCAPING
// =============================================================================

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML replaces exactly & < > " ' with their entities.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// =============================================================================
// HTML RENDERER
// =============================================================================

// MarkdownConverter is the part of goldmark.Markdown the renderer uses.
type MarkdownConverter interface {
	Convert(source []byte, w io.Writer, opts ...parser.ParseOption) error
}

// HTMLRenderer produces HTML fragments.
//
// Assistant content is markdown: GitHub-flavored, with single newlines
// rendered as <br>. goldmark's default safe mode drops raw HTML from the
// source; nothing else is sanitized. If conversion fails the content is
// emitted as escaped text. User content and every other role are escaped with
// EscapeHTML and never interpreted.
type HTMLRenderer struct {
	md MarkdownConverter
}

// NewHTMLRenderer returns a renderer backed by goldmark.
func NewHTMLRenderer() *HTMLRenderer {
	return NewHTMLRendererWith(goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	))
}

// NewHTMLRendererWith uses a custom markdown converter.
func NewHTMLRendererWith(md MarkdownConverter) *HTMLRenderer {
	return &HTMLRenderer{md: md}
}

// Render implements Renderer.
func (r *HTMLRenderer) Render(role Role, content string) string {
	if role != RoleAssistant {
		return EscapeHTML(content)
	}
	out, err := r.markdown(content)
	if err != nil {
		return EscapeHTML(content)
	}
	return out
}

// Markdown converts content as an assistant reply, reporting conversion errors.
func (r *HTMLRenderer) Markdown(content string) (string, error) {
	return r.markdown(content)
}

func (r *HTMLRenderer) markdown(content string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("markdown conversion panicked: %v", p)
		}
	}()

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
