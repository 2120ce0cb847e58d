// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one persisted conversation turn.
type Message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is an ordered, append-only conversation history.
// Implementations are safe for concurrent use.
type Store interface {
	// Append adds a message at the end of the history. ID and CreatedAt are
	// assigned by the store when zero.
	Append(ctx context.Context, msg Message) error

	// Messages returns the full history, oldest first.
	Messages(ctx context.Context) ([]Message, error)

	// Clear removes every message.
	Clear(ctx context.Context) error

	Close() error
}

// Open returns a SQLiteStore for path, or a MemoryStore when path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// ErrInvalidMessage is returned when a message has no role.
var ErrInvalidMessage = errors.New("storage: message role is required")

func validate(msg Message) error {
	if msg.Role == "" {
		return ErrInvalidMessage
	}
	return nil
}
