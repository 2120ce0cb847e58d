// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/storage"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize is the maximum size for request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// DefaultModel is used when a chat request names no model.
	DefaultModel = "mistral"
)

// Version is reported by /health. main overrides it at startup.
var Version = "0.3.0"

// forwardedParams are the parameter keys passed through to Ollama's /api/chat.
// Anything else in the parameter object is echoed back but not forwarded.
var forwardedParams = []string{"format", "options", "think", "keep_alive"}

// ============================================================================
// UPSTREAM
// ============================================================================

// Upstream is the subset of the Ollama client the server needs.
type Upstream interface {
	ModelNames(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error)
	CheckRunning(ctx context.Context) error
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks server usage statistics.
type ServerStats struct {
	TotalRequests int64
	ChatRequests  int64
	ChatErrors    int64
	Clears        int64
	StartTime     time.Time
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// RecordChat records a chat request and whether it failed.
func (s *ServerStats) RecordChat(failed bool) {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.ChatRequests, 1)
	if failed {
		atomic.AddInt64(&s.ChatErrors, 1)
	}
}

// RecordClear records a history clear.
func (s *ServerStats) RecordClear() {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.Clears, 1)
}

// RecordOther records any other API request.
func (s *ServerStats) RecordOther() {
	atomic.AddInt64(&s.TotalRequests, 1)
}

// Snapshot returns a consistent copy of the counters.
func (s *ServerStats) Snapshot() ServerStats {
	return ServerStats{
		TotalRequests: atomic.LoadInt64(&s.TotalRequests),
		ChatRequests:  atomic.LoadInt64(&s.ChatRequests),
		ChatErrors:    atomic.LoadInt64(&s.ChatErrors),
		Clears:        atomic.LoadInt64(&s.Clears),
		StartTime:     s.StartTime,
	}
}

// Uptime returns the server uptime duration.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Config holds the settings New needs.
type Config struct {
	Addr            string
	DefaultModel    string
	RateLimitPerMin int
	AllowedOrigins  []string
	Logger          *log.Logger
}

// Server is the chat backend: it lists Ollama models, relays chat turns with
// the shared conversation history, and clears that history on request.
type Server struct {
	addr    string
	router  *http.ServeMux
	server  *http.Server
	history storage.Store
	stats   *ServerStats
	logger  *log.Logger
	limiter *RateLimiter
	cors    *CORSConfig

	// chatMu serializes chat turns so user and assistant messages alternate
	// in the shared history.
	chatMu sync.Mutex

	mu           sync.RWMutex
	upstream     Upstream
	defaultModel string
}

// New creates a Server. history is owned by the caller.
func New(cfg Config, upstream Upstream, history storage.Store) *Server {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		addr:         cfg.Addr,
		router:       http.NewServeMux(),
		history:      history,
		stats:        NewServerStats(),
		logger:       cfg.Logger,
		upstream:     upstream,
		defaultModel: cfg.DefaultModel,
	}
	if cfg.RateLimitPerMin > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.cors = DefaultCORSConfig()
		s.cors.AllowedOrigins = cfg.AllowedOrigins
	}

	s.setupRoutes()
	return s
}

// Reconfigure swaps the Ollama upstream and default model, e.g. after the
// config file changed. In-flight requests finish on the old upstream.
func (s *Server) Reconfigure(upstream Upstream, defaultModel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upstream != nil {
		s.upstream = upstream
	}
	if defaultModel != "" {
		s.defaultModel = defaultModel
	}
	s.logger.Printf("SERVER_RECONFIGURED | default_model=%s", s.defaultModel)
}

func (s *Server) current() (Upstream, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upstream, s.defaultModel
}

// Stats returns the server's counters.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/models", s.handleModels)
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("POST /api/clear", s.handleClear)

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
	}
	if s.cors != nil {
		middlewares = append(middlewares, CORSMiddleware(s.cors))
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter, s.logger))
	}
	middlewares = append(middlewares, BodyLimitMiddleware(MaxRequestBodySize))
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// API TYPES
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message    string          `json:"message"`
	Model      string          `json:"model"`
	Parameters json.RawMessage `json:"parameters"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Response       string          `json:"response"`
	Model          string          `json:"model"`
	ParametersUsed json.RawMessage `json:"parameters_used"`
}

// ModelsResponse is the success body of GET /api/models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// StatusResponse is the body of POST /api/clear.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Ollama  bool   `json:"ollama"`
	Version string `json:"version"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalRequests int64 `json:"total_requests"`
	ChatRequests  int64 `json:"chat_requests"`
	ChatErrors    int64 `json:"chat_errors"`
	Clears        int64 `json:"clears"`
	HistoryLength int   `json:"history_length"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// ============================================================================
// MODELS HANDLER
// ============================================================================

// handleModels handles GET /api/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.stats.RecordOther()
	upstream, _ := s.current()

	names, err := upstream.ModelNames(r.Context())
	if err != nil {
		s.logger.Printf("MODELS_FAILED | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Error fetching models: "+err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: names})
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat handles POST /api/chat.
//
// The user turn is recorded before Ollama is called and stays in the history
// even when the call fails. The assistant turn is recorded only on success.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	upstream, defaultModel := s.current()
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	params, err := decodeParameters(req.Parameters)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "parameters must be a JSON object")
		return
	}

	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	ctx := r.Context()
	if err := s.history.Append(ctx, storage.Message{Role: "user", Content: req.Message, Model: model}); err != nil {
		s.stats.RecordChat(true)
		s.logger.Printf("HISTORY_APPEND_FAILED | role=user error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Error recording history: "+err.Error())
		return
	}

	history, err := s.history.Messages(ctx)
	if err != nil {
		s.stats.RecordChat(true)
		s.logger.Printf("HISTORY_READ_FAILED | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Error reading history: "+err.Error())
		return
	}

	chatReq := buildChatRequest(model, history, params)
	start := time.Now()
	s.logger.Printf("CHAT_REQUEST | model=%s turns=%d message=%q", model, len(chatReq.Messages), util.TruncateRunes(req.Message, 60))

	resp, err := upstream.Chat(ctx, chatReq)
	if err != nil {
		s.stats.RecordChat(true)
		s.logger.Printf("CHAT_FAILED | model=%s duration=%.3fs error=%v", model, time.Since(start).Seconds(), err)
		s.writeError(w, http.StatusInternalServerError, "Error communicating with Ollama: "+err.Error())
		return
	}

	reply := resp.Message.Content
	if err := s.history.Append(ctx, storage.Message{Role: "assistant", Content: reply, Model: model}); err != nil {
		s.logger.Printf("HISTORY_APPEND_FAILED | role=assistant error=%v", err)
	}
	s.stats.RecordChat(false)
	s.logger.Printf("CHAT_COMPLETE | model=%s duration=%.3fs tokens=%d tok_per_sec=%.1f",
		model, time.Since(start).Seconds(), resp.EvalCount, resp.TokensPerSecond())

	used := req.Parameters
	if len(params) == 0 && !isJSONObject(used) {
		used = json.RawMessage("{}")
	}
	s.writeJSON(w, http.StatusOK, ChatResponse{
		Response:       reply,
		Model:          model,
		ParametersUsed: used,
	})
}

// decodeParameters splits the parameter object into its top-level keys.
// Absent or null parameters decode to an empty map.
func decodeParameters(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// buildChatRequest assembles the Ollama request from the history and the
// forwarded parameter keys. Null values are skipped.
func buildChatRequest(model string, history []storage.Message, params map[string]json.RawMessage) ollama.ChatRequest {
	req := ollama.ChatRequest{
		Model:    model,
		Messages: make([]ollama.Message, 0, len(history)),
	}
	for _, m := range history {
		req.Messages = append(req.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}

	for _, key := range forwardedParams {
		value, ok := params[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		switch key {
		case "format":
			req.Format = value
		case "options":
			req.Options = value
		case "think":
			req.Think = value
		case "keep_alive":
			req.KeepAlive = value
		}
	}
	return req
}

// ============================================================================
// CLEAR HANDLER
// ============================================================================

// handleClear handles POST /api/clear. The request body is ignored.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	if err := s.history.Clear(r.Context()); err != nil {
		s.logger.Printf("HISTORY_CLEAR_FAILED | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Error clearing history: "+err.Error())
		return
	}
	s.stats.RecordClear()
	s.logger.Printf("HISTORY_CLEARED")
	s.writeJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

// ============================================================================
// HEALTH AND STATS HANDLERS
// ============================================================================

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Status: "ok", Version: Version}

	upstream, _ := s.current()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := upstream.CheckRunning(ctx); err == nil {
		health.Ollama = true
	} else {
		health.Status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, health)
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	resp := StatsResponse{
		TotalRequests: snap.TotalRequests,
		ChatRequests:  snap.ChatRequests,
		ChatErrors:    snap.ChatErrors,
		Clears:        snap.Clears,
		UptimeSeconds: int64(s.stats.Uptime().Seconds()),
	}
	if msgs, err := s.history.Messages(r.Context()); err == nil {
		resp.HistoryLength = len(msgs)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Printf("SERVER_START | addr=%s version=%s", ln.Addr(), Version)
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if s.limiter != nil {
		s.limiter.Close()
	}
	if srv == nil {
		return nil
	}

	snap := s.stats.Snapshot()
	s.logger.Printf("SERVER_SHUTDOWN | requests=%d chats=%d chat_errors=%d", snap.TotalRequests, snap.ChatRequests, snap.ChatErrors)
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}, the shape front ends look for.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: strings.TrimSpace(message)})
}
