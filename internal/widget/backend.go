// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 8 << 20

// DefaultBackendTimeout is used when NewHTTPBackend is given no client.
const DefaultBackendTimeout = 120 * time.Second

// =============================================================================
// WIRE TYPES
// =============================================================================

// ModelsReply is the body of GET /api/models.
type ModelsReply struct {
	Models []string `json:"models"`
	Error  string   `json:"error,omitempty"`
}

// ChatPayload is the body of POST /api/chat.
type ChatPayload struct {
	Message    string          `json:"message"`
	Model      string          `json:"model"`
	Parameters json.RawMessage `json:"parameters"`
}

// ChatReply is the body returned by POST /api/chat. Exactly one of Response
// and Error is normally set.
type ChatReply struct {
	Response       string          `json:"response,omitempty"`
	Model          string          `json:"model,omitempty"`
	ParametersUsed json.RawMessage `json:"parameters_used,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the server the widget talks to.
//
// Application errors reported in a JSON "error" field come back as data on the
// reply. The returned error is reserved for transport and decoding failures.
type Backend interface {
	ListModels(ctx context.Context) (ModelsReply, error)
	Chat(ctx context.Context, payload ChatPayload) (ChatReply, error)
	ClearSession(ctx context.Context) error
}

// BackendErrorKind categorizes backend failures.
type BackendErrorKind int

const (
	// KindTransport means no HTTP response was received.
	KindTransport BackendErrorKind = iota
	// KindDecode means the response body was not the expected JSON.
	KindDecode
	// KindStatus means a non-2xx response carried no error message.
	KindStatus
)

func (k BackendErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// BackendError is returned by HTTPBackend when a call fails below the
// application level.
type BackendError struct {
	Kind   BackendErrorKind
	Op     string
	Status int
	Cause  error
}

func (e *BackendError) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	case e.Cause != nil:
		return e.Op + ": " + e.Cause.Error()
	default:
		return e.Op + ": " + e.Kind.String() + " failure"
	}
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// HTTP BACKEND
// =============================================================================

// HTTPBackend implements Backend against the ollama-chat HTTP API.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend for baseURL. A nil client gets one with
// DefaultBackendTimeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: DefaultBackendTimeout}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// BaseURL returns the backend root URL.
func (b *HTTPBackend) BaseURL() string {
	return b.baseURL
}

// ListModels implements Backend.
func (b *HTTPBackend) ListModels(ctx context.Context) (ModelsReply, error) {
	var reply ModelsReply
	status, err := b.do(ctx, "list models", http.MethodGet, "/api/models", nil, &reply)
	if err != nil {
		return ModelsReply{}, err
	}
	if !ok2xx(status) && reply.Error == "" {
		return ModelsReply{}, &BackendError{Kind: KindStatus, Op: "list models", Status: status}
	}
	return reply, nil
}

// Chat implements Backend.
func (b *HTTPBackend) Chat(ctx context.Context, payload ChatPayload) (ChatReply, error) {
	if len(payload.Parameters) == 0 {
		payload.Parameters = json.RawMessage("{}")
	}
	var reply ChatReply
	status, err := b.do(ctx, "chat", http.MethodPost, "/api/chat", payload, &reply)
	if err != nil {
		return ChatReply{}, err
	}
	if !ok2xx(status) && reply.Error == "" {
		return ChatReply{}, &BackendError{Kind: KindStatus, Op: "chat", Status: status}
	}
	return reply, nil
}

// ClearSession implements Backend. Any HTTP response counts as success.
func (b *HTTPBackend) ClearSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/clear", nil)
	if err != nil {
		return &BackendError{Kind: KindTransport, Op: "clear", Cause: err}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return &BackendError{Kind: KindTransport, Op: "clear", Cause: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	return nil
}

// do sends the request and decodes the JSON body into out whatever the
// status, since the server reports failures as {"error": ...}.
func (b *HTTPBackend) do(ctx context.Context, op, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, &BackendError{Kind: KindDecode, Op: op, Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return 0, &BackendError{Kind: KindTransport, Op: op, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, &BackendError{Kind: KindTransport, Op: op, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, &BackendError{Kind: KindTransport, Op: op, Status: resp.StatusCode, Cause: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &BackendError{Kind: KindDecode, Op: op, Status: resp.StatusCode, Cause: err}
	}
	return resp.StatusCode, nil
}

func ok2xx(status int) bool {
	return status >= 200 && status < 300
}
