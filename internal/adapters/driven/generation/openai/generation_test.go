package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
)

var testDeployment = domain.ModelDeployment{
	Alias:    "fast",
	Handle:   "gpt-4o-mini",
	Provider: "openai",
}

func newTestService(t *testing.T, handler http.HandlerFunc) *GenerationService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewGenerationService(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return svc
}

// writeSSE writes one data line and flushes so the client sees it
// immediately.
func writeSSE(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func deltaChunk(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestStream_DeliversFragmentsInOrder(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w, deltaChunk("Hello"))
		writeSSE(w, deltaChunk(" world"))
		writeSSE(w, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
		writeSSE(w, "[DONE]")
	})

	req := driven.GenerationRequest{
		Messages: []driven.ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	}

	var got []string
	result, err := svc.Stream(context.Background(), testDeployment, req, func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " world"}, got)
	assert.Equal(t, "stop", result.FinishReason)
}

func TestStream_SkipsMalformedChunks(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		writeSSE(w, deltaChunk("ok"))
		writeSSE(w, "{not json")
		writeSSE(w, deltaChunk(" fine"))
		writeSSE(w, "[DONE]")
	})

	var got string
	_, err := svc.Stream(context.Background(), testDeployment, driven.GenerationRequest{}, func(f string) error {
		got += f
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok fine", got)
}

func TestStream_ReportsUsage(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		writeSSE(w, deltaChunk("hi"))
		writeSSE(w, `{"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
		writeSSE(w, "[DONE]")
	})

	result, err := svc.Stream(context.Background(), testDeployment, driven.GenerationRequest{}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 3, result.CompletionTokens)
}

func TestStream_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "bad request", status: http.StatusBadRequest, wantErr: domain.ErrInvalidRequest},
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrInvalidRequest},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, wantErr: domain.ErrInvalidRequest},
		{name: "request timeout", status: http.StatusRequestTimeout, wantErr: domain.ErrUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: domain.ErrUnavailable},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"message": "nope", "type": "test"},
				})
			})

			_, err := svc.Stream(context.Background(), testDeployment, driven.GenerationRequest{}, func(string) error { return nil })
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorContains(t, err, "nope")
		})
	}
}

func TestStream_CallbackErrorAbortsStream(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		writeSSE(w, deltaChunk("first"))
		writeSSE(w, deltaChunk("second"))
		writeSSE(w, "[DONE]")
	})

	abort := fmt.Errorf("stop here")
	calls := 0
	_, err := svc.Stream(context.Background(), testDeployment, driven.GenerationRequest{}, func(string) error {
		calls++
		return abort
	})
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 1, calls)
}

func TestStream_CancelStopsDelivery(t *testing.T) {
	release := make(chan struct{})
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, deltaChunk("first"))
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Stream(ctx, testDeployment, driven.GenerationRequest{}, func(string) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream_ConnectionRefusedIsTransient(t *testing.T) {
	svc, err := NewGenerationService(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = svc.Stream(context.Background(), testDeployment, driven.GenerationRequest{}, func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestNewGenerationService_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerationService(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
