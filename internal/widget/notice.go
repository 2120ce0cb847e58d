// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"sync"
	"time"
)

// NoticeLifetime is how long a transient notice stays in the transcript.
const NoticeLifetime = 3 * time.Second

// =============================================================================
// SCHEDULING
// =============================================================================

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer (false if it already fired or was stopped).
	Stop() bool
}

// Scheduler runs a callback after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler returns a Scheduler backed by time.AfterFunc.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

// =============================================================================
// NOTICES
// =============================================================================

// Notices places short-lived status entries in a transcript and removes
// them once their lifetime elapses.
type Notices struct {
	transcript *Transcript
	scheduler  Scheduler
	lifetime   time.Duration

	mu      sync.Mutex
	pending map[string]Timer
	closed  bool
}

// NewNotices creates a notice manager for t. A nil scheduler uses
// SystemScheduler and a non-positive lifetime uses NoticeLifetime.
func NewNotices(t *Transcript, s Scheduler, lifetime time.Duration) *Notices {
	if s == nil {
		s = SystemScheduler()
	}
	if lifetime <= 0 {
		lifetime = NoticeLifetime
	}
	return &Notices{
		transcript: t,
		scheduler:  s,
		lifetime:   lifetime,
		pending:    make(map[string]Timer),
	}
}

// Show appends a transient entry of the given role and schedules its
// removal. After Close, Show does nothing and returns the zero Entry.
func (n *Notices) Show(role Role, text string) Entry {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return Entry{}
	}

	e := n.transcript.newEntry(role, text)
	e.Transient = true
	n.transcript.append(e)

	id := e.ID
	n.pending[id] = n.scheduler.AfterFunc(n.lifetime, func() { n.expire(id) })
	return e
}

func (n *Notices) expire(id string) {
	n.mu.Lock()
	_, ok := n.pending[id]
	delete(n.pending, id)
	n.mu.Unlock()

	if ok {
		n.transcript.Remove(id)
	}
}

// Dismiss cancels the timer for notice id and removes it now.
func (n *Notices) Dismiss(id string) bool {
	n.mu.Lock()
	t, ok := n.pending[id]
	delete(n.pending, id)
	n.mu.Unlock()

	if !ok {
		return false
	}
	t.Stop()
	n.transcript.Remove(id)
	return true
}

// DismissAll cancels every pending notice and removes it now. It returns the
// number of notices removed.
func (n *Notices) DismissAll() int {
	n.mu.Lock()
	pending := n.pending
	n.pending = make(map[string]Timer)
	n.mu.Unlock()

	for id, t := range pending {
		t.Stop()
		n.transcript.Remove(id)
	}
	return len(pending)
}

// Pending returns the number of notices waiting to expire.
func (n *Notices) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// CancelAll stops every pending timer without touching the transcript.
// Used when the transcript is about to be replaced.
func (n *Notices) CancelAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, t := range n.pending {
		t.Stop()
		delete(n.pending, id)
	}
}

// Close cancels pending timers and disables further notices.
func (n *Notices) Close() {
	n.CancelAll()
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}
