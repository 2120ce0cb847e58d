// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the ollama-chat TUI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals.

# Color System (colors.go)

  - Purple: assistant entries and the header
  - Cyan: user entries and the input prompt
  - Emerald: success notices
  - Amber: info notices and the typing placeholder
  - Rose: errors

# Theme (theme.go)

Theme bundles the lipgloss styles the chat view draws with. RoleStyle maps a
transcript role name to its label style.

# Animations (animations.go)

TypingSpinner drives the bubbles spinner shown while a reply is pending.
*/
package styles
