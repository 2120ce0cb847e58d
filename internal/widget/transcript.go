// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies who (or what) produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSuccess   Role = "success" // transient notice
	RoleError     Role = "error"
	RoleInfo      Role = "info" // transient notice
	RoleTyping    Role = "typing"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one rendered item in the transcript.
type Entry struct {
	ID        string
	Role      Role
	Content   string
	Rendered  string
	Transient bool
	CreatedAt time.Time
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered, in-memory list of entries shown to the user.
// It is safe for concurrent use.
//
// Every append moves the scroll position to the last entry, even if the user
// had scrolled up.
type Transcript struct {
	renderer Renderer

	mu      sync.RWMutex
	entries []Entry
	scroll  int
	subs    map[int]chan struct{}
	nextSub int
}

// NewTranscript creates an empty transcript that renders with r.
func NewTranscript(r Renderer) *Transcript {
	if r == nil {
		r = NewHTMLRenderer()
	}
	return &Transcript{
		renderer: r,
		subs:     make(map[int]chan struct{}),
	}
}

func (t *Transcript) newEntry(role Role, content string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Rendered:  t.renderer.Render(role, content),
		CreatedAt: time.Now(),
	}
}

// Append renders and appends an entry, then scrolls to it.
func (t *Transcript) Append(role Role, content string) Entry {
	return t.append(t.newEntry(role, content))
}

func (t *Transcript) append(e Entry) Entry {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.scroll = len(t.entries) - 1
	t.mu.Unlock()

	t.notify()
	return e
}

// Remove deletes the entry with id. It reports whether the entry existed.
func (t *Transcript) Remove(id string) bool {
	t.mu.Lock()
	idx := -1
	for i, e := range t.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
	if t.scroll >= len(t.entries) {
		t.scroll = len(t.entries) - 1
	}
	if t.scroll < 0 {
		t.scroll = 0
	}
	t.mu.Unlock()

	t.notify()
	return true
}

// Reset replaces every entry with a single new one.
func (t *Transcript) Reset(role Role, content string) Entry {
	e := t.newEntry(role, content)

	t.mu.Lock()
	t.entries = []Entry{e}
	t.scroll = 0
	t.mu.Unlock()

	t.notify()
	return e
}

// Entries returns a copy of the current entries, oldest first.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last returns the newest entry.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Get returns the entry with id.
func (t *Transcript) Get(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// =============================================================================
// SCROLLING
// =============================================================================

// ScrollTo moves the scroll position to entry index i, clamped to range.
func (t *Transcript) ScrollTo(i int) {
	t.mu.Lock()
	if i >= len(t.entries) {
		i = len(t.entries) - 1
	}
	if i < 0 {
		i = 0
	}
	t.scroll = i
	t.mu.Unlock()
}

// ScrollPosition returns the index of the entry scrolled to.
func (t *Transcript) ScrollPosition() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scroll
}

// AtBottom reports whether the last entry is in view.
func (t *Transcript) AtBottom() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) == 0 || t.scroll == len(t.entries)-1
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel that receives a value after transcript changes.
// Notifications coalesce: a slow reader sees one pending signal, not one per
// change. Call the returned func to unsubscribe.
func (t *Transcript) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

func (t *Transcript) notify() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
