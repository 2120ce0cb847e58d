// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeUpstream records chat requests and answers from canned values.
type fakeUpstream struct {
	mu       sync.Mutex
	models   []string
	modelErr error
	reply    string
	chatErr  error
	down     bool
	requests []ollama.ChatRequest
}

func (f *fakeUpstream) ModelNames(ctx context.Context) ([]string, error) {
	return f.models, f.modelErr
}

func (f *fakeUpstream) Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &ollama.ChatResponse{Model: req.Model, Message: ollama.NewAssistantMessage(f.reply), Done: true}, nil
}

func (f *fakeUpstream) CheckRunning(ctx context.Context) error {
	if f.down {
		return errors.New("down")
	}
	return nil
}

func (f *fakeUpstream) lastRequest(t *testing.T) ollama.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no chat request reached upstream")
	}
	return f.requests[len(f.requests)-1]
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestServer(t *testing.T, up *fakeUpstream, cfg Config) (*Server, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	cfg.Logger = quietLogger()
	return New(cfg, up, store), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return out
}

// =============================================================================
// MODELS
// =============================================================================

func TestHandleModels(t *testing.T) {
	up := &fakeUpstream{models: []string{"llama3", "mistral"}}
	srv, _ := newTestServer(t, up, Config{})

	rec := do(t, srv.Handler(), "GET", "/api/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"models":["llama3","mistral"]}` {
		t.Errorf("body = %s", got)
	}
}

func TestHandleModels_EmptyListIsArray(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUpstream{}, Config{})

	rec := do(t, srv.Handler(), "GET", "/api/models", "")
	if got := strings.TrimSpace(rec.Body.String()); got != `{"models":[]}` {
		t.Errorf("body = %s, want empty array", got)
	}
}

func TestHandleModels_UpstreamError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUpstream{modelErr: errors.New("connection refused")}, Config{})

	rec := do(t, srv.Handler(), "GET", "/api/models", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var msg string
	json.Unmarshal(decode(t, rec)["error"], &msg)
	if msg != "Error fetching models: connection refused" {
		t.Errorf("error = %q", msg)
	}
}

// =============================================================================
// CHAT
// =============================================================================

func TestHandleChat_Success(t *testing.T) {
	up := &fakeUpstream{reply: "**hello**"}
	srv, store := newTestServer(t, up, Config{})

	rec := do(t, srv.Handler(), "POST", "/api/chat",
		`{"message":"hi","model":"llama3","parameters":{"options":{"temperature":0.7},"format":null,"keep_alive":"5m","extra":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "**hello**" || resp.Model != "llama3" {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(string(resp.ParametersUsed), `"extra":1`) {
		t.Errorf("parameters_used = %s, want the request parameters echoed", resp.ParametersUsed)
	}

	req := up.lastRequest(t)
	if string(req.Options) != `{"temperature":0.7}` {
		t.Errorf("options = %s", req.Options)
	}
	if req.Format != nil {
		t.Errorf("null format should be skipped, got %s", req.Format)
	}
	if string(req.KeepAlive) != `"5m"` {
		t.Errorf("keep_alive = %s", req.KeepAlive)
	}

	history, _ := store.Messages(context.Background())
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "assistant" || history[1].Content != "**hello**" {
		t.Errorf("history = %+v", history)
	}
}

func TestHandleChat_ReplaysHistory(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	srv, _ := newTestServer(t, up, Config{})
	h := srv.Handler()

	do(t, h, "POST", "/api/chat", `{"message":"first","model":"llama3"}`)
	do(t, h, "POST", "/api/chat", `{"message":"second","model":"llama3"}`)

	req := up.lastRequest(t)
	if len(req.Messages) != 3 {
		t.Fatalf("messages = %+v, want user/assistant/user", req.Messages)
	}
	if req.Messages[0].Content != "first" || req.Messages[1].Role != "assistant" || req.Messages[2].Content != "second" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestHandleChat_DefaultModel(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	srv, _ := newTestServer(t, up, Config{})

	rec := do(t, srv.Handler(), "POST", "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := up.lastRequest(t).Model; got != "mistral" {
		t.Errorf("model = %q, want mistral", got)
	}
	var resp ChatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if string(resp.ParametersUsed) != "{}" {
		t.Errorf("parameters_used = %s, want {}", resp.ParametersUsed)
	}
}

func TestHandleChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty message", `{"message":"","model":"llama3"}`, "No message provided"},
		{"missing message", `{"model":"llama3"}`, "No message provided"},
		{"not json", `{bad`, "Invalid JSON body"},
		{"array parameters", `{"message":"hi","parameters":[1]}`, "parameters must be a JSON object"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			up := &fakeUpstream{}
			srv, store := newTestServer(t, up, Config{})

			rec := do(t, srv.Handler(), "POST", "/api/chat", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var msg string
			json.Unmarshal(decode(t, rec)["error"], &msg)
			if msg != tc.want {
				t.Errorf("error = %q, want %q", msg, tc.want)
			}
			if len(up.requests) != 0 {
				t.Error("bad request reached upstream")
			}
			if history, _ := store.Messages(context.Background()); len(history) != 0 {
				t.Errorf("history = %v, want empty", history)
			}
		})
	}
}

func TestHandleChat_UpstreamErrorKeepsUserTurn(t *testing.T) {
	up := &fakeUpstream{chatErr: errors.New("model \"nope\" not found")}
	srv, store := newTestServer(t, up, Config{})

	rec := do(t, srv.Handler(), "POST", "/api/chat", `{"message":"hi","model":"nope"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var msg string
	json.Unmarshal(decode(t, rec)["error"], &msg)
	if !strings.HasPrefix(msg, "Error communicating with Ollama: ") {
		t.Errorf("error = %q", msg)
	}

	history, _ := store.Messages(context.Background())
	if len(history) != 1 || history[0].Role != "user" {
		t.Errorf("history = %+v, want only the user turn", history)
	}
	if snap := srv.Stats().Snapshot(); snap.ChatErrors != 1 {
		t.Errorf("ChatErrors = %d, want 1", snap.ChatErrors)
	}
}

func TestHandleChat_BodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUpstream{}, Config{})

	big := `{"message":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`
	rec := do(t, srv.Handler(), "POST", "/api/chat", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

// =============================================================================
// CLEAR
// =============================================================================

func TestHandleClear(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	srv, store := newTestServer(t, up, Config{})
	h := srv.Handler()

	do(t, h, "POST", "/api/chat", `{"message":"hi","model":"llama3"}`)
	rec := do(t, h, "POST", "/api/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"success"}` {
		t.Errorf("body = %s", got)
	}
	if history, _ := store.Messages(context.Background()); len(history) != 0 {
		t.Errorf("history = %v, want empty", history)
	}
}

func TestHandleClear_StoreError(t *testing.T) {
	srv, store := newTestServer(t, &fakeUpstream{}, Config{})
	store.Close()

	rec := do(t, srv.Handler(), "POST", "/api/clear", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// =============================================================================
// HEALTH, STATS, ROUTING
// =============================================================================

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		down       bool
		wantStatus string
		wantOllama bool
	}{
		{false, "ok", true},
		{true, "degraded", false},
	}
	for _, tc := range tests {
		srv, _ := newTestServer(t, &fakeUpstream{down: tc.down}, Config{})
		rec := do(t, srv.Handler(), "GET", "/health", "")

		var health HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatal(err)
		}
		if health.Status != tc.wantStatus || health.Ollama != tc.wantOllama || health.Version != Version {
			t.Errorf("health = %+v, want status=%s ollama=%v", health, tc.wantStatus, tc.wantOllama)
		}
	}
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUpstream{reply: "ok"}, Config{})
	h := srv.Handler()

	do(t, h, "POST", "/api/chat", `{"message":"hi"}`)
	do(t, h, "GET", "/api/models", "")

	var stats StatsResponse
	json.Unmarshal(do(t, h, "GET", "/stats", "").Body.Bytes(), &stats)
	if stats.ChatRequests != 1 || stats.TotalRequests != 2 || stats.HistoryLength != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUpstream{}, Config{})
	rec := do(t, srv.Handler(), "GET", "/api/chat", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/chat status = %d, want 405", rec.Code)
	}
}

func TestReconfigure(t *testing.T) {
	first := &fakeUpstream{reply: "one"}
	second := &fakeUpstream{reply: "two"}
	srv, _ := newTestServer(t, first, Config{DefaultModel: "mistral"})

	srv.Reconfigure(second, "llama3")
	do(t, srv.Handler(), "POST", "/api/chat", `{"message":"hi"}`)

	if len(first.requests) != 0 {
		t.Error("old upstream still used")
	}
	if got := second.lastRequest(t).Model; got != "llama3" {
		t.Errorf("model = %q, want llama3", got)
	}
}

// =============================================================================
// END TO END WITH OLLAMA CLIENT
// =============================================================================

func TestServer_WithOllamaClient(t *testing.T) {
	fakeOllama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"llama3:latest","model":"llama3:latest"}]}`)
		case "/api/chat":
			var req map[string]json.RawMessage
			json.NewDecoder(r.Body).Decode(&req)
			if string(req["stream"]) != "false" {
				t.Errorf("stream = %s", req["stream"])
			}
			io.WriteString(w, `{"model":"llama3:latest","message":{"role":"assistant","content":"hi there"},"done":true}`)
		default:
			io.WriteString(w, "Ollama is running")
		}
	}))
	defer fakeOllama.Close()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: fakeOllama.URL, Timeout: 2 * time.Second})
	store := storage.NewMemoryStore()
	defer store.Close()
	srv := New(Config{Logger: quietLogger()}, client, store)

	api := httptest.NewServer(srv.Handler())
	defer api.Close()

	resp, err := http.Get(api.URL + "/api/models")
	if err != nil {
		t.Fatal(err)
	}
	var models ModelsResponse
	json.NewDecoder(resp.Body).Decode(&models)
	resp.Body.Close()
	if len(models.Models) != 1 || models.Models[0] != "llama3:latest" {
		t.Errorf("models = %v", models.Models)
	}

	resp, err = http.Post(api.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hello","model":"llama3:latest"}`))
	if err != nil {
		t.Fatal(err)
	}
	var chat ChatResponse
	json.NewDecoder(resp.Body).Decode(&chat)
	resp.Body.Close()
	if chat.Response != "hi there" {
		t.Errorf("response = %q", chat.Response)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestServer_StartAndShutdown(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	srv := New(Config{Addr: "127.0.0.1:0", RateLimitPerMin: 10, Logger: quietLogger()}, &fakeUpstream{}, store)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Wait until Serve has installed the http.Server.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.RLock()
		ready := srv.server != nil
		srv.mu.RUnlock()
		if ready || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Start() = %v, want ErrServerClosed", err)
	}
}
