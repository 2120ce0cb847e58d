// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// Only what the chat backend needs is implemented: model listing
// (/api/tags), non-streaming chat completion (/api/chat) and a liveness
// probe. Tuning parameters are passed through as raw JSON so that any key
// Ollama understands reaches it unchanged.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatRequest / ChatResponse: /api/chat bodies
//   - ClientError: typed error with IsTimeout / IsNotRunning / IsModelNotFound helpers
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: "http://localhost:11434"})
//	resp, err := client.Chat(ctx, ollama.ChatRequest{
//	    Model:    "mistral",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	    Options:  json.RawMessage(`{"temperature":0.7}`),
//	})
package ollama
