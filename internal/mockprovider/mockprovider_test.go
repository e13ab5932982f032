package mockprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/straja-ai/intakerisk/internal/assessment"
	"github.com/straja-ai/intakerisk/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMockProviderChatCompletions(t *testing.T) {
	shutdown, baseURL, err := StartMockProvider(Options{Addr: "127.0.0.1:0", Delay: time.Millisecond})
	if err != nil {
		t.Skipf("start mock provider: %v", err)
	}
	defer shutdown(context.Background())

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	payload := []byte(`{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`)
	resp, err := client.Post(baseURL+"/v1/chat/completions", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Role    string `json:"role"`
			} `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "gpt-4o-mini", body.Model)
	require.Len(t, body.Choices, 1)
	assert.Equal(t, DefaultCompletion, body.Choices[0].Message.Content)
}

func TestMockCompletionPassesAssessment(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{}))
	defer srv.Close()

	p := provider.NewOpenAI(srv.URL+"/v1", "sk-test", 0, 0)
	svc := assessment.NewService(p, nil, assessment.Options{Model: "gpt-4o-mini", Temperature: 0.2})

	got, err := svc.Assess(context.Background(), "Lives alone, fell last month.")
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", got.Result.Level)
	assert.Equal(t, "ACCEPT_WITH_CONDITIONS", got.Result.Recommendation)
	assert.Equal(t, []string{"Lives alone", "Falls history"}, got.Result.Risks)
}

func TestMockFaults(t *testing.T) {
	tests := []struct {
		fault    Fault
		category string
	}{
		{FaultError, "OpenAI API error"},
		{FaultNoChoices, "Invalid response from OpenAI"},
		{FaultProse, "Failed to process request"},
	}
	for _, tt := range tests {
		t.Run(string(tt.fault), func(t *testing.T) {
			srv := httptest.NewServer(Handler(Options{Fault: tt.fault}))
			defer srv.Close()

			svc := assessment.NewService(provider.NewOpenAI(srv.URL, "sk-test", 0, 0), nil, assessment.Options{Model: "gpt-4o-mini"})
			_, err := svc.Assess(context.Background(), "note")

			var aerr *assessment.Error
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tt.category, aerr.Category)
		})
	}
}

func TestMockUnknownRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler(Options{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/embeddings", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_request_error")
}
