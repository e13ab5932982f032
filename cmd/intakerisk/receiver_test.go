package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventHandlerLogsEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := eventHandler(zap.New(core))

	body := `{"version":"1","request_id":"req-1","meta":{"surface":"api","provider":"OpenAI","model":"gpt-4o-mini"},"outcome":"ok","status":200,"result":{"score":42,"level":"MEDIUM","recommendation":"ACCEPT","risk_count":0}}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/activation", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)
	entries := logs.FilterMessage("assessment").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "MEDIUM", entries[0].ContextMap()["level"])
}

func TestEventHandlerRejects(t *testing.T) {
	h := eventHandler(zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
