// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// FAKE SCHEDULER
// =============================================================================

type fakeTimer struct {
	s       *fakeScheduler
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler runs callbacks only when Advance moves its clock past them.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, due: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []func()
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.due <= s.now {
			t.fired = true
			due = append(due, t.f)
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		f()
	}
}

func (s *fakeScheduler) Stopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if t.stopped {
			n++
		}
	}
	return n
}

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu sync.Mutex

	models    ModelsReply
	modelsErr error
	reply     ChatReply
	chatErr   error
	clearErr  error

	chatCalls  []ChatPayload
	clearCalls int

	// onChat runs inside Chat before it returns.
	onChat func()
}

func (b *fakeBackend) ListModels(ctx context.Context) (ModelsReply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.models, b.modelsErr
}

func (b *fakeBackend) Chat(ctx context.Context, payload ChatPayload) (ChatReply, error) {
	b.mu.Lock()
	b.chatCalls = append(b.chatCalls, payload)
	hook := b.onChat
	reply, err := b.reply, b.chatErr
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	return reply, err
}

func (b *fakeBackend) ClearSession(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearCalls++
	return b.clearErr
}

func (b *fakeBackend) calls() []ChatPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChatPayload, len(b.chatCalls))
	copy(out, b.chatCalls)
	return out
}

// newTestController returns a controller with models loaded.
func newTestController(b *fakeBackend, s *fakeScheduler) *Controller {
	if b.models.Models == nil && b.modelsErr == nil {
		b.models = ModelsReply{Models: []string{"llama3", "mistral"}}
	}
	c := New(b, Config{Scheduler: s})
	c.LoadModels(context.Background())
	return c
}

func entriesWithRole(t *Transcript, role Role) []Entry {
	var out []Entry
	for _, e := range t.Entries() {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out
}
