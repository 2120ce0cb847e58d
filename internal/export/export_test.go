// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/ollama-chat/internal/widget"
)

func sampleEntries() []widget.Entry {
	now := time.Date(2025, 3, 1, 14, 30, 52, 0, time.UTC)
	return []widget.Entry{
		{ID: "1", Role: widget.RoleAssistant, Content: widget.Greeting, CreatedAt: now},
		{ID: "2", Role: widget.RoleUser, Content: "<script>alert('xss')</script>", CreatedAt: now},
		{ID: "3", Role: widget.RoleTyping, Content: widget.TypingText, CreatedAt: now},
		{ID: "4", Role: widget.RoleAssistant, Content: "**hello**\n\n```go\nx := 1\n```", CreatedAt: now},
		{ID: "5", Role: widget.RoleSuccess, Content: widget.MsgParamsApplied, Transient: true, CreatedAt: now},
		{ID: "6", Role: widget.RoleError, Content: "Network error: refused", CreatedAt: now},
	}
}

func TestNewSnapshotSkipsTransientEntries(t *testing.T) {
	snap := NewSnapshot("", "llama3", sampleEntries())

	if snap.Title != "Ollama Chat" {
		t.Errorf("Title = %q, want default", snap.Title)
	}
	var ids []string
	for _, e := range snap.Entries {
		ids = append(ids, e.ID)
	}
	if got := strings.Join(ids, ","); got != "1,2,4,6" {
		t.Errorf("kept entries = %s, want 1,2,4,6", got)
	}
}

func TestHTMLExport(t *testing.T) {
	snap := NewSnapshot("Chat <1>", "llama3", sampleEntries())
	out, err := NewHTMLExporter(nil).Export(snap)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	html := string(out)

	checks := []string{
		"<!DOCTYPE html>",
		"<title>Chat &lt;1&gt;</title>",
		"&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		"<strong>hello</strong>",
		`<code class="language-go">`,
		`class="message error-message"`,
		"Network error: refused",
		"<strong>Model:</strong> llama3",
		`class="dark-theme"`,
	}
	for _, want := range checks {
		if !strings.Contains(html, want) {
			t.Errorf("HTML output missing %q", want)
		}
	}

	if strings.Contains(html, "<script>alert") {
		t.Error("user content was not escaped")
	}
	if strings.Contains(html, widget.TypingText) || strings.Contains(html, widget.MsgParamsApplied) {
		t.Error("transient entries should not be exported")
	}
}

func TestHTMLExportLightTheme(t *testing.T) {
	out, err := NewHTMLExporter(&Options{Theme: "light"}).Export(NewSnapshot("t", "", sampleEntries()))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(out), `class="light-theme"`) {
		t.Error("expected light theme body class")
	}
	if strings.Contains(string(out), "<strong>Model:</strong>") {
		t.Error("model line should be omitted when model is empty")
	}
	if strings.Contains(string(out), `class="timestamp"`) {
		t.Error("timestamps should be omitted when IncludeTimestamps is false")
	}
}

func TestMarkdownExport(t *testing.T) {
	snap := NewSnapshot("Test\nInjection: malicious", "llama3", sampleEntries())
	out, err := NewMarkdownExporter(nil).Export(snap)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)

	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "Injection:") {
			t.Error("newline in title leaked into front matter")
		}
	}
	for _, want := range []string{
		`title: "Test\nInjection: malicious"`,
		"### You <sub>14:30:52</sub>",
		"**hello**",
		"> Network error: refused",
		"messages: 4",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown output missing %q", want)
		}
	}
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(NewSnapshot("t", "llama3", sampleEntries()))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(doc.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(doc.Messages))
	}
	if doc.Messages[1].Content != "<script>alert('xss')</script>" {
		t.Errorf("content should be raw, got %q", doc.Messages[1].Content)
	}
	if doc.Model != "llama3" {
		t.Errorf("Model = %q", doc.Model)
	}
}

func TestExportEmpty(t *testing.T) {
	snap := NewSnapshot("t", "", []widget.Entry{{Role: widget.RoleTyping, Content: "..."}})
	for _, exp := range []Exporter{NewHTMLExporter(nil), NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		if _, err := exp.Export(snap); !errors.Is(err, ErrEmpty) {
			t.Errorf("%T: err = %v, want ErrEmpty", exp, err)
		}
		if _, err := exp.Export(nil); err == nil {
			t.Errorf("%T: expected error for nil snapshot", exp)
		}
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		err  bool
	}{
		{"chat.html", ".html", false},
		{"chat.HTM", ".html", false},
		{"chat", ".html", false},
		{"notes.md", ".md", false},
		{"dump.json", ".json", false},
		{"chat.pdf", "", true},
	}

	for _, tt := range tests {
		exp, err := ForPath(tt.path, nil)
		if tt.err {
			if err == nil {
				t.Errorf("ForPath(%q) expected error", tt.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForPath(%q) error: %v", tt.path, err)
			continue
		}
		if exp.FileExtension() != tt.ext {
			t.Errorf("ForPath(%q) ext = %s, want %s", tt.path, exp.FileExtension(), tt.ext)
		}
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	snap := NewSnapshot("t", "llama3", sampleEntries())

	path, err := ExportToFile(snap, filepath.Join(dir, "out", "chat"), nil)
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if filepath.Ext(path) != ".html" {
		t.Errorf("path = %s, want .html suffix", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "<strong>hello</strong>") {
		t.Error("exported file missing rendered reply")
	}

	mdPath, err := ExportToFile(snap, filepath.Join(dir, "chat.md"), nil)
	if err != nil {
		t.Fatalf("ExportToFile md failed: %v", err)
	}
	if mdPath != filepath.Join(dir, "chat.md") {
		t.Errorf("md path = %s", mdPath)
	}

	if _, err := ExportToFile(snap, filepath.Join(dir, "chat.pdf"), nil); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Chat", "My_Chat"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"", "chat"},
		{"tab\there", "tab_here"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("x", 80)
	if got := sanitizeFilename(long); len([]rune(got)) > 50 {
		t.Errorf("sanitizeFilename did not truncate: %d runes", len([]rune(got)))
	}
}

func TestDefaultFilename(t *testing.T) {
	snap := &Snapshot{Title: "My Chat", CreatedAt: time.Date(2026, 1, 24, 14, 30, 52, 0, time.UTC)}
	if got := DefaultFilename(snap, ".html"); got != "chat_My_Chat_20260124_143052.html" {
		t.Errorf("DefaultFilename = %q", got)
	}
}
