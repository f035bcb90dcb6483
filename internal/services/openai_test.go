package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"welcome-backend/internal/models"
)

func testCompletionRequest() CompletionRequest {
	return CompletionRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "SYSTEM"},
			{Role: models.RoleUser, Content: "Je voudrais un devis"},
		},
		Params: ModelParams{
			Model:       "llama3-8b-8192",
			Temperature: 0.7,
			MaxTokens:   1024,
			TopP:        1,
		},
	}
}

func newTestCompleter(t *testing.T, timeout time.Duration, handler http.HandlerFunc) *OpenAICompleter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAICompleter("test-key", srv.URL, timeout, zap.NewNop())
}

func TestOpenAICompleter_Success(t *testing.T) {
	var got openai.ChatCompletionRequest
	c := newTestCompleter(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama3-8b-8192",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " Avec plaisir ! "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	})

	out, err := c.Complete(context.Background(), testCompletionRequest())
	require.NoError(t, err)
	require.Equal(t, "Avec plaisir !", out.Text)
	require.Equal(t, 16, out.TotalTokens)
	require.Equal(t, 12, out.PromptTokens)

	require.Equal(t, "llama3-8b-8192", got.Model)
	require.Equal(t, 1024, got.MaxTokens)
	require.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	require.Equal(t, "Je voudrais un devis", got.Messages[1].Content)
}

func TestOpenAICompleter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		timeout    time.Duration
		handler    http.HandlerFunc
		kind       CompletionErrorKind
		statusCode int
	}{
		{
			name:    "api error status",
			timeout: time.Second,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": {"message": "rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`))
			},
			kind:       CompletionStatus,
			statusCode: http.StatusTooManyRequests,
		},
		{
			name:    "no choices",
			timeout: time.Second,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id": "x", "choices": []}`))
			},
			kind: CompletionMalformed,
		},
		{
			name:    "empty content",
			timeout: time.Second,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  "}}]}`))
			},
			kind: CompletionMalformed,
		},
		{
			name:    "timeout",
			timeout: 20 * time.Millisecond,
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			kind: CompletionTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCompleter(t, tc.timeout, tc.handler)

			_, err := c.Complete(context.Background(), testCompletionRequest())
			require.Error(t, err)

			var cerr *CompletionError
			require.True(t, errors.As(err, &cerr))
			require.Equal(t, tc.kind, cerr.Kind)
			require.Equal(t, tc.statusCode, cerr.StatusCode)
		})
	}
}

func TestOpenAICompleter_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOpenAICompleter("test-key", url, time.Second, zap.NewNop())
	_, err := c.Complete(context.Background(), testCompletionRequest())

	var cerr *CompletionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, CompletionTransport, cerr.Kind)
}

func TestModelCatalog_Resolve(t *testing.T) {
	c := CatalogFor("groq")

	id, ok := c.Resolve("balanced")
	require.True(t, ok)
	require.Equal(t, "llama3-70b-8192", id)

	id, ok = c.Resolve("mixtral-8x7b-32768")
	require.True(t, ok)
	require.Equal(t, "mixtral-8x7b-32768", id)

	_, ok = c.Resolve("gpt-4o")
	require.False(t, ok)

	require.Equal(t, []string{"llama3-70b-8192", "llama3-8b-8192", "mixtral-8x7b-32768"}, c.IDs())
	require.Empty(t, CatalogFor("unknown"))
}

func TestOpenAICompleter_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	c := newTestCompleter(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": "Oui"}}]}`))
	})

	req := testCompletionRequest()
	req.Params.Temperature = 0
	_, err := c.Complete(context.Background(), req)
	require.NoError(t, err)

	temperature, ok := body["temperature"]
	require.True(t, ok, "temperature missing from request body")
	require.Greater(t, temperature.(float64), 0.0)
	require.Less(t, temperature.(float64), 1e-6)
}

func TestModelCatalog_With(t *testing.T) {
	base := CatalogFor("groq")
	c := base.With(map[string]string{
		"fast":  "llama-3.1-8b-instant",
		"large": "llama-3.3-70b-versatile",
	})

	id, ok := c.Resolve("fast")
	require.True(t, ok)
	require.Equal(t, "llama-3.1-8b-instant", id)

	id, ok = c.Resolve("large")
	require.True(t, ok)
	require.Equal(t, "llama-3.3-70b-versatile", id)

	id, ok = c.Resolve("balanced")
	require.True(t, ok)
	require.Equal(t, "llama3-70b-8192", id)

	require.Equal(t, "llama3-8b-8192", base["fast"], "base catalogue must not change")
	require.Equal(t, base, base.With(nil))
}
