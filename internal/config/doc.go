// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollama-chat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - ClientConfig: how the TUI and REPL reach the chat backend
//   - ServerConfig: listen address, history storage, Ollama connection
//   - UIConfig: theme and markdown wrap width
//   - Watcher: reloads the config file on change (used by `serve`)
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OLLAMA_CHAT_*, OLLAMA_HOST)
//   - ~/.ollama-chat/config.toml
//   - ~/.ollama-chat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := &http.Client{Timeout: cfg.RequestTimeout()}
package config
