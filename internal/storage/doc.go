// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage holds the backend's conversation history.
//
// The server keeps a single shared conversation: every user turn and every
// assistant reply is appended in order and replayed to Ollama as context on
// the next request. Clear wipes it.
//
// # Key Types
//
//   - Store: the history interface used by the server
//   - MemoryStore: in-process history, lost on restart (default)
//   - SQLiteStore: history persisted in a SQLite file (modernc.org/sqlite, no CGO)
//
// # Usage
//
//	store, err := storage.Open(cfg.Server.HistoryDB) // "" selects MemoryStore
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//	store.Append(ctx, storage.Message{Role: "user", Content: "hi"})
package storage
