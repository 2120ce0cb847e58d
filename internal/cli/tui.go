// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-chat/internal/ui/chat"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// HandleTUI opens the full-screen chat window. It needs a terminal on both
// stdin and stdout.
func HandleTUI(args Args) error {
	if err := RequiresTTY("open the chat window"); err != nil {
		return err
	}

	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		return err
	}

	// No logger: the alt screen owns the terminal.
	ctrl := NewController(cfg, Args{}, 0)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := chat.New(ctrl, chat.Options{
		Context:        ctx,
		Theme:          styles.NewThemeFor(GetColorProfile(), HasDarkBackground()),
		ExportDir:      args.ExportDir,
		PreferredModel: args.Model,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
