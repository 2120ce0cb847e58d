// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestHTTPBackendListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"models":["llama3","mistral"]}`)
	}))
	defer srv.Close()

	reply, err := NewHTTPBackend(srv.URL+"/", nil).ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral"}, reply.Models)
}

func TestHTTPBackendListModelsErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Error fetching models: down"}`)
	}))
	defer srv.Close()

	reply, err := NewHTTPBackend(srv.URL, nil).ListModels(ctx)
	require.NoError(t, err)
	assert.Empty(t, reply.Models)
	assert.Equal(t, "Error fetching models: down", reply.Error)
}

func TestHTTPBackendFailures(t *testing.T) {
	htmlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>proxy error</html>")
	}))
	defer htmlSrv.Close()

	emptySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{}`)
	}))
	defer emptySrv.Close()

	tests := []struct {
		name string
		url  string
		kind BackendErrorKind
	}{
		{"not json", htmlSrv.URL, KindDecode},
		{"bare status", emptySrv.URL, KindStatus},
		{"unreachable", closedServerURL(t), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewHTTPBackend(tt.url, nil)

			_, err := b.ListModels(ctx)
			var be *BackendError
			require.True(t, errors.As(err, &be), "ListModels error %v", err)
			assert.Equal(t, tt.kind, be.Kind)

			_, err = b.Chat(ctx, ChatPayload{Message: "hi", Model: "m"})
			require.True(t, errors.As(err, &be), "Chat error %v", err)
			assert.Equal(t, tt.kind, be.Kind)
			assert.Equal(t, "chat", be.Op)
		})
	}
}

func TestHTTPBackendChat(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"response":"**hello**","model":"llama3","parameters_used":{"options":{"temperature":0.2}}}`)
	}))
	defer srv.Close()

	reply, err := NewHTTPBackend(srv.URL, nil).Chat(ctx, ChatPayload{
		Message:    "hi",
		Model:      "llama3",
		Parameters: json.RawMessage(`{"options":{"temperature":0.2}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "**hello**", reply.Response)
	assert.Equal(t, "llama3", reply.Model)
	assert.JSONEq(t, `{"options":{"temperature":0.2}}`, string(reply.ParametersUsed))

	assert.JSONEq(t, `"hi"`, string(got["message"]))
	assert.JSONEq(t, `"llama3"`, string(got["model"]))
	assert.JSONEq(t, `{"options":{"temperature":0.2}}`, string(got["parameters"]))
}

func TestHTTPBackendChatDefaultsParameters(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"response":"ok"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPBackend(srv.URL, nil).Chat(ctx, ChatPayload{Message: "hi", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got["parameters"]))
}

func TestHTTPBackendChatErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Error communicating with Ollama: boom"}`)
	}))
	defer srv.Close()

	reply, err := NewHTTPBackend(srv.URL, nil).Chat(ctx, ChatPayload{Message: "hi", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "Error communicating with Ollama: boom", reply.Error)
}

func TestHTTPBackendClearSession(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusInternalServerError, http.StatusNotFound} {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/clear", r.URL.Path)
			w.WriteHeader(status)
			io.WriteString(w, "not json")
		}))

		assert.NoError(t, NewHTTPBackend(srv.URL, nil).ClearSession(ctx), "status %d", status)
		assert.Equal(t, 1, calls)
		srv.Close()
	}

	err := NewHTTPBackend(closedServerURL(t), nil).ClearSession(ctx)
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindTransport, be.Kind)
	assert.Equal(t, "clear", be.Op)
}

func TestControllerOverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":["llama3","mistral"]}`)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var p ChatPayload
		json.NewDecoder(r.Body).Decode(&p)
		if p.Model != "llama3" || p.Message != "hi" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"unexpected request"}`)
			return
		}
		io.WriteString(w, `{"response":"**hello**"}`)
	})
	mux.HandleFunc("POST /api/clear", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(NewHTTPBackend(srv.URL, nil), Config{Scheduler: &fakeScheduler{}})
	defer c.Close()

	require.Equal(t, LoadOK, c.LoadModels(ctx))
	assert.Equal(t, "llama3", c.SelectedModel())

	c.SetInput("hi")
	require.Equal(t, OutcomeReplied, c.Send(ctx))

	last, ok := c.Transcript().Last()
	require.True(t, ok)
	assert.Contains(t, last.Rendered, "<strong>hello</strong>")

	require.Equal(t, ClearDone, c.Clear(ctx))
	assert.Equal(t, 1, c.Transcript().Len())
}
