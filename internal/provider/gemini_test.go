package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/intakerisk/internal/inference"
)

func newGeminiUpstream(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiChatCompletionSuccess(t *testing.T) {
	var seen map[string]any
	srv := newGeminiUpstream(t, http.StatusOK, `{
		"candidates":[{"content":{"role":"model","parts":[{"text":"{\"score\":5}"}]},"finishReason":"STOP"}],
		"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3,"totalTokenCount":7}
	}`, &seen)

	p, err := NewGemini(context.Background(), srv.URL, "test-key", 0)
	require.NoError(t, err)
	assert.Equal(t, "Gemini", p.Name())

	resp, err := p.ChatCompletion(context.Background(), &inference.Request{
		Model: "gemini-2.0-flash",
		Messages: []inference.Message{
			{Role: inference.RoleSystem, Content: "rubric"},
			{Role: inference.RoleUser, Content: "intake"},
		},
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score":5}`, resp.Message.Content)
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	_, hasSystem := seen["systemInstruction"]
	assert.True(t, hasSystem, "system prompt should travel as systemInstruction")
}

func TestGeminiErrorEnvelope(t *testing.T) {
	srv := newGeminiUpstream(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, nil)

	p, err := NewGemini(context.Background(), srv.URL, "test-key", 0)
	require.NoError(t, err)

	_, err = p.ChatCompletion(context.Background(), &inference.Request{
		Model:    "gemini-2.0-flash",
		Messages: []inference.Message{{Role: inference.RoleUser, Content: "intake"}},
	})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %T: %v", err, err)
	assert.Equal(t, "API key not valid", apiErr.Message)
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := newGeminiUpstream(t, http.StatusOK, `{"candidates":[]}`, nil)

	p, err := NewGemini(context.Background(), srv.URL, "test-key", 0)
	require.NoError(t, err)

	_, err = p.ChatCompletion(context.Background(), &inference.Request{
		Model:    "gemini-2.0-flash",
		Messages: []inference.Message{{Role: inference.RoleUser, Content: "intake"}},
	})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
