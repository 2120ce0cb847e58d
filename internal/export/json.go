// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts as JSON. Only raw content is written;
// rendered HTML is omitted.
type JSONExporter struct {
	options *Options
}

type jsonDocument struct {
	Title    string        `json:"title"`
	Model    string        `json:"model,omitempty"`
	Exported time.Time     `json:"exported"`
	Messages []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a snapshot to indented JSON.
func (e *JSONExporter) Export(s *Snapshot) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	doc := jsonDocument{
		Title:    s.Title,
		Model:    s.Model,
		Exported: s.CreatedAt,
		Messages: make([]jsonMessage, 0, len(s.Entries)),
	}
	for _, entry := range s.Entries {
		doc.Messages = append(doc.Messages, jsonMessage{
			ID:        entry.ID,
			Role:      string(entry.Role),
			Content:   entry.Content,
			CreatedAt: entry.CreatedAt,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
