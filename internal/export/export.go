// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/util"
	"github.com/jeranaias/ollama-chat/internal/widget"
)

// ErrEmpty is returned when a snapshot has nothing to export.
var ErrEmpty = errors.New("transcript has no messages")

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the exportable part of a transcript at one point in time.
type Snapshot struct {
	Title     string
	Model     string
	CreatedAt time.Time
	Entries   []widget.Entry
}

// NewSnapshot copies the entries worth keeping: transient notices and the
// typing placeholder are dropped.
func NewSnapshot(title, model string, entries []widget.Entry) *Snapshot {
	kept := make([]widget.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Transient || e.Role == widget.RoleTyping {
			continue
		}
		kept = append(kept, e)
	}
	if title == "" {
		title = "Ollama Chat"
	}
	return &Snapshot{
		Title:     title,
		Model:     model,
		CreatedAt: time.Now(),
		Entries:   kept,
	}
}

func (s *Snapshot) validate() error {
	if s == nil {
		return errors.New("snapshot is nil")
	}
	if len(s.Entries) == 0 {
		return ErrEmpty
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a snapshot to one file format.
type Exporter interface {
	Export(s *Snapshot) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeTimestamps adds per-entry times.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark"). Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// ForPath picks an exporter from the file extension. A path with no
// extension gets HTML.
func ForPath(path string, opts *Options) (Exporter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case "", ".html", ".htm":
		return NewHTMLExporter(opts), nil
	case ".md", ".markdown":
		return NewMarkdownExporter(opts), nil
	case ".json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}
}

// ExportToFile writes s to path in the format its extension names and
// returns the path written. An empty path gets a timestamped HTML file name in
// the working directory; a path without an extension gets ".html" appended.
func ExportToFile(s *Snapshot, path string, opts *Options) (string, error) {
	if path == "" {
		path = DefaultFilename(s, ".html")
	}
	exporter, err := ForPath(path, opts)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) == "" {
		path += exporter.FileExtension()
	}

	content, err := exporter.Export(s)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// DefaultFilename builds "chat_<title>_<timestamp><ext>".
func DefaultFilename(s *Snapshot, ext string) string {
	title := "chat"
	at := time.Now()
	if s != nil {
		title = s.Title
		if !s.CreatedAt.IsZero() {
			at = s.CreatedAt
		}
	}
	return fmt.Sprintf("chat_%s_%s%s", sanitizeFilename(title), at.Format("20060102_150405"), ext)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "chat"
	}
	return b.String()
}

// roleLabel returns the heading shown for an entry.
func roleLabel(role widget.Role) string {
	switch role {
	case widget.RoleUser:
		return "You"
	case widget.RoleAssistant:
		return "Assistant"
	case widget.RoleError:
		return "Error"
	case "":
		return "Unknown"
	default:
		r := []rune(string(role))
		return strings.ToUpper(string(r[0])) + string(r[1:])
	}
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
