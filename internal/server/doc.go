// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat backend HTTP API.
//
// The backend sits between chat front ends and a local Ollama daemon. It keeps
// one shared conversation history and replays it to Ollama on every turn.
//
// # Endpoints
//
//   - GET  /api/models - {"models": [...]} from Ollama's local model list
//   - POST /api/chat   - {message, model, parameters} -> {response, model, parameters_used}
//   - POST /api/clear  - clears the shared history, {"status": "success"}
//   - GET  /health     - liveness plus Ollama reachability
//   - GET  /stats      - request counters
//
// Every failure is answered with {"error": "..."}.
//
// # Middleware
//
//   - Panic recovery with stack trace logging
//   - Security headers (X-Content-Type-Options, X-Frame-Options, CSP)
//   - Request logging with timing information
//   - CORS for configured origins
//   - Per-client token bucket rate limiting (golang.org/x/time/rate)
//   - 1 MiB request body cap
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:5000"}, ollamaClient, store)
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
