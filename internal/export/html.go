// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/widget"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS.
//
// Entries are rendered exactly as the web widget renders them: user text is
// escaped, assistant text is markdown.
type HTMLExporter struct {
	options  *Options
	renderer *widget.HTMLRenderer
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts, renderer: widget.NewHTMLRenderer()}
}

// Export converts a snapshot to HTML.
func (e *HTMLExporter) Export(s *Snapshot) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	title := widget.EscapeHTML(s.Title)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"ollama-chat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", s.CreatedAt.Format(time.RFC3339))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", title)
	sb.WriteString("            <div class=\"metadata\">\n")
	if s.Model != "" {
		fmt.Fprintf(&sb, "                <span><strong>Model:</strong> %s</span>\n", widget.EscapeHTML(s.Model))
	}
	fmt.Fprintf(&sb, "                <span><strong>Exported:</strong> %s</span>\n", formatTimestamp(s.CreatedAt))
	fmt.Fprintf(&sb, "                <span><strong>Messages:</strong> %d</span>\n", len(s.Entries))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, entry := range s.Entries {
		sb.WriteString(e.renderEntry(entry))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>ollama-chat</strong> on %s</p>\n",
		s.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderEntry(entry widget.Entry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", widget.EscapeHTML(string(entry.Role)))
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", roleLabel(entry.Role))
	if e.options.IncludeTimestamps && !entry.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(entry.CreatedAt))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(e.renderer.Render(entry.Role, entry.Content))
	sb.WriteString("\n                </div>\n")
	sb.WriteString("            </div>\n")

	return sb.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        .dark-theme {
            --bg: #1a1b26; --panel: #24283b; --header: #414868;
            --text: #c0caf5; --muted: #565f89; --border: #414868;
            --user: #7aa2f7; --assistant: #9ece6a; --error: #f7768e; --code: #16161e;
        }

        .light-theme {
            --bg: #ffffff; --panel: #f7f8fa; --header: #e1e4e8;
            --text: #24292e; --muted: #6a737d; --border: #e1e4e8;
            --user: #0366d6; --assistant: #22863a; --error: #d73a49; --code: #f6f8fa;
        }

        body {
            font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif;
            line-height: 1.6;
            color: var(--text);
            background: var(--bg);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
        .header { padding: 28px 32px; background: var(--header); }
        .header h1 { font-size: 26px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; }
        .conversation { padding: 24px 32px; }

        .message { margin-bottom: 20px; padding: 16px 20px; border-radius: 8px; border-left: 4px solid transparent; }
        .user-message { border-left-color: var(--user); }
        .assistant-message { border-left-color: var(--assistant); }
        .error-message { border-left-color: var(--error); color: var(--error); }

        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .timestamp { color: var(--muted); font-family: monospace; }
        .message-content p { margin-bottom: 10px; }
        .message-content pre { background: var(--code); padding: 12px; border-radius: 6px; overflow-x: auto; }
        .message-content code { font-family: "Fira Code", Menlo, monospace; font-size: 14px; }
        .message-content table { border-collapse: collapse; margin: 8px 0; }
        .message-content th, .message-content td { border: 1px solid var(--border); padding: 4px 8px; }

        .footer { padding: 16px 32px; text-align: center; font-size: 13px; color: var(--muted); border-top: 1px solid var(--border); }

        @media print { .message { page-break-inside: avoid; } }
    </style>
`
