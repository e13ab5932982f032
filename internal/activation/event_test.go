package activation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/straja-ai/intakerisk/internal/assessment"
	"github.com/straja-ai/intakerisk/internal/config"
)

func TestBuildEventSuccessCarriesNoText(t *testing.T) {
	a := &assessment.Assessment{
		Raw: json.RawMessage(`{"score":42}`),
		Result: assessment.Result{
			Score:          42,
			Level:          "MEDIUM",
			Risks:          []string{"Lives alone", "Falls history"},
			Summary:        "Client lives alone and fell twice.",
			Recommendation: "ACCEPT_WITH_CONDITIONS",
		},
	}
	ev := BuildEvent(BuildParams{
		RequestID:  "req-1",
		Surface:    SurfaceAPI,
		Provider:   "OpenAI",
		Model:      "gpt-4o-mini",
		Assessment: a,
		Upstream:   250 * time.Millisecond,
		Total:      300 * time.Millisecond,
	})

	require.NotNil(t, ev)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, OutcomeOK, ev.Outcome)
	assert.Equal(t, TypeCompleted, ev.Type)
	assert.Equal(t, http.StatusOK, ev.Status)
	require.NotNil(t, ev.Result)
	assert.Equal(t, ResultSummary{Score: 42, Level: "MEDIUM", Recommendation: "ACCEPT_WITH_CONDITIONS", RiskCount: 2}, *ev.Result)
	assert.Nil(t, ev.Error)
	assert.InDelta(t, 250.0, ev.TimingMs.Provider, 1e-9)
	assert.InDelta(t, 300.0, ev.TimingMs.Total, 1e-9)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Lives alone")
	assert.NotContains(t, string(data), "fell twice")
}

func TestBuildEventFailure(t *testing.T) {
	ev := BuildEvent(BuildParams{
		Surface:  SurfaceRenderer,
		Provider: "OpenAI",
		Err:      assessment.InputError(),
	})

	assert.NotEmpty(t, ev.RequestID, "a request id is generated when missing")
	assert.Equal(t, OutcomeError, ev.Outcome)
	assert.Equal(t, TypeFailed, ev.Type)
	assert.Equal(t, http.StatusBadRequest, ev.Status)
	require.NotNil(t, ev.Error)
	assert.Equal(t, Failure{Kind: "input", Category: "No intake text provided"}, *ev.Error)
	assert.Nil(t, ev.Result)

	other := BuildEvent(BuildParams{Err: errors.New("boom")})
	assert.Equal(t, http.StatusInternalServerError, other.Status)
	assert.Equal(t, "Failed to process request", other.Error.Category)
}

func TestLogSinkWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	ev := BuildEvent(BuildParams{
		RequestID: "req-9",
		Surface:   SurfaceCLI,
		Provider:  "Gemini",
		Assessment: &assessment.Assessment{Result: assessment.Result{
			Score: 88, Level: "CRITICAL", Recommendation: "DECLINE", Risks: []string{"Dementia"},
		}},
	})
	require.NoError(t, sink.Deliver(context.Background(), ev))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "activation", entries[0].LoggerName)
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "cli", fields["surface"])
	assert.Equal(t, TypeCompleted, fields["type"])
	assert.Equal(t, "CRITICAL", fields["level"])
	assert.Equal(t, int64(1), fields["risk_count"])
	assert.NotContains(t, fields, "risks")
}

func TestBuildSinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sinks, err := BuildSinks(config.ActivationConfig{Sinks: []config.ActivationSinkConfig{
		{Type: "log"},
		{Type: "webhook", URL: "http://127.0.0.1:9/hook"},
		{Type: "file_jsonl", Path: path},
	}}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, sinks, 3)
	assert.Equal(t, "log", sinks[0].Name())
	assert.Equal(t, "webhook:http://127.0.0.1:9/hook", sinks[1].Name())
	assert.Equal(t, "file_jsonl:"+path, sinks[2].Name())
	for _, s := range sinks {
		require.NoError(t, s.Close(context.Background()))
	}

	_, err = BuildSinks(config.ActivationConfig{Sinks: []config.ActivationSinkConfig{{Type: "kafka"}}}, nil)
	require.Error(t, err)
}
