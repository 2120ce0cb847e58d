// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestNewStartsWithGreeting(t *testing.T) {
	c := New(&fakeBackend{}, Config{Scheduler: &fakeScheduler{}})
	defer c.Close()

	entries := c.Transcript().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, RoleAssistant, entries[0].Role)
	assert.Equal(t, Greeting, entries[0].Content)
	assert.Equal(t, DefaultParameters().Text(), c.ParametersText())
}

// =============================================================================
// MODEL LOADER
// =============================================================================

func TestLoadModelsSelectsFirst(t *testing.T) {
	b := &fakeBackend{models: ModelsReply{Models: []string{"llama3", "mistral"}}}
	c := New(b, Config{Scheduler: &fakeScheduler{}})

	assert.Equal(t, LoadOK, c.LoadModels(ctx))
	assert.Equal(t, "llama3", c.SelectedModel())
	assert.Equal(t, []Option{{"llama3", "llama3"}, {"mistral", "mistral"}}, c.Models())
}

func TestLoadModelsSentinels(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		outcome LoadOutcome
		label   string
	}{
		{"empty list", &fakeBackend{models: ModelsReply{Models: []string{}}}, LoadEmpty, SentinelNoModels},
		{"absent list", &fakeBackend{}, LoadEmpty, SentinelNoModels},
		{"error field", &fakeBackend{models: ModelsReply{Error: "Error fetching models: down"}}, LoadEmpty, SentinelNoModels},
		{"transport", &fakeBackend{modelsErr: &BackendError{Kind: KindTransport, Op: "list models", Cause: errors.New("refused")}}, LoadFailed, SentinelLoadError},
		{"not json", &fakeBackend{modelsErr: &BackendError{Kind: KindDecode, Op: "list models", Cause: errors.New("invalid character")}}, LoadFailed, SentinelLoadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.backend, Config{Scheduler: &fakeScheduler{}})

			assert.Equal(t, tt.outcome, c.LoadModels(ctx))
			assert.Equal(t, []Option{{Value: "", Label: tt.label}}, c.Models())
			assert.Equal(t, "", c.SelectedModel())
			assert.Equal(t, tt.label, c.SelectedLabel())
		})
	}
}

func TestSelectAndCycleModel(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeScheduler{})

	require.NoError(t, c.SelectModel("mistral"))
	assert.Equal(t, "mistral", c.SelectedModel())
	assert.Error(t, c.SelectModel("gpt"))
	assert.Equal(t, "mistral", c.SelectedModel())

	assert.Equal(t, "llama3", c.CycleModel())
	assert.Equal(t, "mistral", c.CycleModel())
}

// =============================================================================
// SEND
// =============================================================================

func TestSendRendersMarkdownReply(t *testing.T) {
	b := &fakeBackend{reply: ChatReply{Response: "**hello**"}}
	focused := 0
	c := New(b, Config{Scheduler: &fakeScheduler{}, OnInputFocus: func() { focused++ }})
	b.models = ModelsReply{Models: []string{"llama3", "mistral"}}
	c.LoadModels(ctx)

	c.SetInput("  hi  ")
	assert.Equal(t, OutcomeReplied, c.Send(ctx))

	entries := c.Transcript().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, RoleUser, entries[1].Role)
	assert.Equal(t, "hi", entries[1].Content)
	assert.Equal(t, RoleAssistant, entries[2].Role)
	assert.Contains(t, entries[2].Rendered, "<strong>hello</strong>")

	calls := b.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hi", calls[0].Message)
	assert.Equal(t, "llama3", calls[0].Model)
	assert.JSONEq(t, string(DefaultParameters().JSON()), string(calls[0].Parameters))

	assert.Empty(t, c.Input())
	assert.False(t, c.Sending())
	assert.Equal(t, 1, focused)
	assert.True(t, c.Transcript().AtBottom())
}

func TestSendOrdering(t *testing.T) {
	b := &fakeBackend{reply: ChatReply{Response: "ok"}}
	c := newTestController(b, &fakeScheduler{})

	var atCall []Entry
	var sendingAtCall bool
	b.onChat = func() {
		atCall = c.Transcript().Entries()
		sendingAtCall = c.Sending()
	}

	c.SetInput("question")
	c.Send(ctx)

	require.Len(t, atCall, 3)
	assert.Equal(t, RoleUser, atCall[1].Role)
	assert.Equal(t, RoleTyping, atCall[2].Role)
	assert.Equal(t, TypingText, atCall[2].Content)
	assert.True(t, sendingAtCall)

	assert.Empty(t, entriesWithRole(c.Transcript(), RoleTyping))
}

func TestSendBlankInputIsIgnored(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b, &fakeScheduler{})

	for _, in := range []string{"", "   ", "\n\t "} {
		c.SetInput(in)
		assert.Equal(t, OutcomeIgnored, c.Send(ctx))
	}

	assert.Equal(t, 1, c.Transcript().Len())
	assert.Empty(t, b.calls())
}

func TestSendWithoutModel(t *testing.T) {
	b := &fakeBackend{}
	c := New(b, Config{Scheduler: &fakeScheduler{}})

	c.SetInput("hello")
	assert.Equal(t, OutcomeNoModel, c.Send(ctx))

	entries := c.Transcript().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, RoleError, entries[1].Role)
	assert.Equal(t, MsgSelectModel, entries[1].Content)
	assert.False(t, entries[1].Transient)
	assert.Empty(t, b.calls())
	assert.Equal(t, "hello", c.Input())
	assert.False(t, c.Sending())
}

func TestSendWithSentinelSelected(t *testing.T) {
	b := &fakeBackend{models: ModelsReply{Models: []string{}}}
	c := New(b, Config{Scheduler: &fakeScheduler{}})
	c.LoadModels(ctx)

	c.SetInput("hello")
	assert.Equal(t, OutcomeNoModel, c.Send(ctx))
	assert.Empty(t, b.calls())
}

func TestSendBackendError(t *testing.T) {
	b := &fakeBackend{reply: ChatReply{Error: "Error communicating with Ollama: model not found"}}
	focused := 0
	c := New(b, Config{Scheduler: &fakeScheduler{}, OnInputFocus: func() { focused++ }})
	b.models = ModelsReply{Models: []string{"llama3"}}
	c.LoadModels(ctx)

	c.SetInput("hi")
	assert.Equal(t, OutcomeBackendError, c.Send(ctx))

	entries := c.Transcript().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, RoleUser, entries[1].Role)
	assert.Equal(t, RoleError, entries[2].Role)
	assert.Equal(t, "Error communicating with Ollama: model not found", entries[2].Content)
	assert.False(t, c.Sending())
	assert.Equal(t, 1, focused)
}

func TestSendNetworkError(t *testing.T) {
	b := &fakeBackend{chatErr: &BackendError{Kind: KindTransport, Op: "chat", Cause: errors.New("connection refused")}}
	focused := 0
	c := New(b, Config{Scheduler: &fakeScheduler{}, OnInputFocus: func() { focused++ }})
	b.models = ModelsReply{Models: []string{"llama3"}}
	c.LoadModels(ctx)

	c.SetInput("hi")
	assert.Equal(t, OutcomeNetworkError, c.Send(ctx))

	entries := c.Transcript().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, RoleUser, entries[1].Role)
	assert.Equal(t, RoleError, entries[2].Role)
	assert.Equal(t, "Network error: connection refused", entries[2].Content)
	assert.Empty(t, entriesWithRole(c.Transcript(), RoleTyping))
	assert.False(t, c.Sending())
	assert.Equal(t, 1, focused)
}

func TestSendStatusErrorMessage(t *testing.T) {
	b := &fakeBackend{chatErr: &BackendError{Kind: KindStatus, Op: "chat", Status: 502}}
	c := newTestController(b, &fakeScheduler{})

	c.SetInput("hi")
	assert.Equal(t, OutcomeNetworkError, c.Send(ctx))

	last, _ := c.Transcript().Last()
	assert.Equal(t, "Network error: chat: unexpected status 502", last.Content)
}

func TestSendBusyGate(t *testing.T) {
	b := &fakeBackend{reply: ChatReply{Response: "first"}}
	c := newTestController(b, &fakeScheduler{})

	entered := make(chan struct{})
	release := make(chan struct{})
	b.onChat = func() {
		close(entered)
		<-release
	}

	c.SetInput("one")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.Equal(t, OutcomeReplied, c.Send(ctx))
	}()

	<-entered
	assert.True(t, c.Sending())

	before := c.Transcript().Len()
	c.SetInput("two")
	assert.Equal(t, OutcomeBusy, c.Send(ctx))
	assert.Equal(t, before, c.Transcript().Len())
	assert.Equal(t, "two", c.Input())

	close(release)
	wg.Wait()

	assert.False(t, c.Sending())
	assert.Len(t, b.calls(), 1)
	assert.Len(t, entriesWithRole(c.Transcript(), RoleUser), 1)
	assert.Len(t, entriesWithRole(c.Transcript(), RoleAssistant), 2)
}

func TestSendEscapesUserContent(t *testing.T) {
	b := &fakeBackend{reply: ChatReply{Response: "ok"}}
	c := newTestController(b, &fakeScheduler{})

	c.SetInput("<script>alert(1)</script>")
	c.Send(ctx)

	users := entriesWithRole(c.Transcript(), RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", users[0].Rendered)
}

func TestSendUsesCurrentParameters(t *testing.T) {
	b := &fakeBackend{reply: ChatReply{Response: "ok"}}
	c := newTestController(b, &fakeScheduler{})

	require.Equal(t, ApplyApplied, c.ApplyParameters(`{"format":"json"}`))
	c.SetInput("hi")
	c.Send(ctx)

	calls := b.calls()
	require.Len(t, calls, 1)
	assert.JSONEq(t,
		`{"format":"json","options":{"num_predict":1000,"temperature":0.7,"top_p":0.9}}`,
		string(calls[0].Parameters))
}

// =============================================================================
// PARAMETERS
// =============================================================================

func TestApplyParametersShallowMerge(t *testing.T) {
	s := &fakeScheduler{}
	c := newTestController(&fakeBackend{}, s)

	require.Equal(t, ApplyApplied, c.ApplyParameters(`{"keep_alive":"5m"}`))
	require.Equal(t, ApplyApplied, c.ApplyParameters(`{"options":{"temperature":0.2}}`))

	text := c.ParametersText()
	assert.Contains(t, text, `"temperature": 0.2`)
	assert.Contains(t, text, `"keep_alive": "5m"`)
	assert.NotContains(t, text, "num_predict")

	notices := entriesWithRole(c.Transcript(), RoleSuccess)
	require.Len(t, notices, 2)
	assert.Equal(t, MsgParamsApplied, notices[0].Content)
	assert.True(t, notices[0].Transient)
}

func TestApplyParametersInvalid(t *testing.T) {
	s := &fakeScheduler{}
	c := newTestController(&fakeBackend{}, s)
	before := string(c.Parameters().JSON())
	beforeText := c.ParametersText()

	assert.Equal(t, ApplyInvalid, c.ApplyParameters(`{bad`))

	assert.Equal(t, before, string(c.Parameters().JSON()))
	assert.Equal(t, beforeText, c.ParametersText())

	errs := entriesWithRole(c.Transcript(), RoleError)
	require.Len(t, errs, 1)
	assert.Equal(t, MsgParamsInvalid, errs[0].Content)
	assert.True(t, errs[0].Transient)
}

func TestApplyParametersRejectsNonObject(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeScheduler{})
	before := c.ParametersText()

	assert.Equal(t, ApplyInvalid, c.ApplyParameters(`[1, 2]`))
	assert.Equal(t, before, c.ParametersText())
}

func TestApplyParametersBlankIsNoop(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeScheduler{})

	assert.Equal(t, ApplyNoop, c.ApplyParameters("  \n "))
	assert.Equal(t, 1, c.Transcript().Len())
}

func TestParameterNoticesExpire(t *testing.T) {
	s := &fakeScheduler{}
	c := newTestController(&fakeBackend{}, s)

	c.ApplyParameters(`{"a":1}`)
	c.ApplyParameters(`{bad`)
	c.ResetParameters()
	assert.Equal(t, 4, c.Transcript().Len())

	s.Advance(NoticeLifetime)

	entries := c.Transcript().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Greeting, entries[0].Content)
}

func TestResetParameters(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeScheduler{})
	c.ApplyParameters(`{"options":{"temperature":1.9},"format":"json"}`)

	c.ResetParameters()

	assert.Equal(t, DefaultParameters().Text(), c.ParametersText())
	infos := entriesWithRole(c.Transcript(), RoleInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, MsgParamsReset, infos[0].Content)
}

func TestParametersReturnsCopy(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeScheduler{})

	p := c.Parameters()
	p["format"] = "json"

	assert.NotContains(t, c.ParametersText(), "format")
}

// =============================================================================
// CLEAR
// =============================================================================

func TestClearReplacesTranscriptWithGreeting(t *testing.T) {
	s := &fakeScheduler{}
	b := &fakeBackend{reply: ChatReply{Response: "ok"}}
	c := newTestController(b, s)

	c.SetInput("hi")
	c.Send(ctx)
	c.ApplyParameters(`{"a":1}`)

	assert.Equal(t, ClearDone, c.Clear(ctx))

	entries := c.Transcript().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, RoleAssistant, entries[0].Role)
	assert.Equal(t, Greeting, entries[0].Content)
	assert.Equal(t, 1, b.clearCalls)
	assert.Equal(t, 0, c.Notices().Pending())

	s.Advance(NoticeLifetime)
	assert.Equal(t, 1, c.Transcript().Len())
}

func TestClearFailureKeepsTranscript(t *testing.T) {
	b := &fakeBackend{
		reply:    ChatReply{Response: "ok"},
		clearErr: &BackendError{Kind: KindTransport, Op: "clear", Cause: errors.New("connection refused")},
	}
	c := newTestController(b, &fakeScheduler{})

	c.SetInput("hi")
	c.Send(ctx)
	before := c.Transcript().Entries()

	assert.Equal(t, ClearFailed, c.Clear(ctx))

	after := c.Transcript().Entries()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)])
	assert.Equal(t, RoleError, after[len(after)-1].Role)
	assert.Equal(t, "Error clearing chat: connection refused", after[len(after)-1].Content)
}

func TestCustomGreeting(t *testing.T) {
	c := New(&fakeBackend{}, Config{Scheduler: &fakeScheduler{}, Greeting: "Hi there"})
	c.Clear(ctx)

	entries := c.Transcript().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hi there", entries[0].Content)
}

func TestSendOutcomeString(t *testing.T) {
	assert.Equal(t, "replied", OutcomeReplied.String())
	assert.Equal(t, "busy", OutcomeBusy.String())
	assert.Equal(t, "unknown", SendOutcome(99).String())
}
