package activation

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/intakerisk/internal/assessment"
)

func completedEvent(requestID, surface string) *Event {
	return BuildEvent(BuildParams{
		RequestID: requestID,
		Surface:   surface,
		Provider:  "OpenAI",
		Model:     "gpt-4o-mini",
		Assessment: &assessment.Assessment{Result: assessment.Result{
			Score: 42, Level: "MEDIUM", Recommendation: "ACCEPT_WITH_CONDITIONS", Risks: []string{"Lives alone"},
		}},
		Upstream: 120 * time.Millisecond,
		Total:    130 * time.Millisecond,
	})
}

func failedEvent(requestID string) *Event {
	return BuildEvent(BuildParams{
		RequestID: requestID,
		Surface:   SurfaceAPI,
		Provider:  "OpenAI",
		Err:       assessment.InputError(),
	})
}

func readJSONL(t *testing.T, path string) []Event {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []Event
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		out = append(out, ev)
	}
	return out
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), completedEvent("req-1", SurfaceAPI)))
	require.NoError(t, sink.Deliver(context.Background(), failedEvent("req-2")))
	require.NoError(t, sink.Close(context.Background()))

	events := readJSONL(t, path)
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, TypeCompleted, events[0].Type)
	require.NotNil(t, events[0].Result)
	assert.Equal(t, 1, events[0].Result.RiskCount)
	assert.Equal(t, TypeFailed, events[1].Type)
	assert.Equal(t, "No intake text provided", events[1].Error.Category)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSinkSplitsBySurface(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "events-{surface}.jsonl"))
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), completedEvent("a1", SurfaceAPI)))
	require.NoError(t, sink.Deliver(context.Background(), completedEvent("r1", SurfaceRenderer)))
	require.NoError(t, sink.Deliver(context.Background(), completedEvent("a2", SurfaceAPI)))
	require.NoError(t, sink.Close(context.Background()))

	api := readJSONL(t, filepath.Join(dir, "events-api.jsonl"))
	require.Len(t, api, 2)
	assert.Equal(t, "a1", api[0].RequestID)
	assert.Equal(t, "a2", api[1].RequestID)

	renderer := readJSONL(t, filepath.Join(dir, "events-renderer.jsonl"))
	require.Len(t, renderer, 1)
	assert.Equal(t, SurfaceRenderer, renderer[0].Meta.Surface)

	_, err = os.Stat(filepath.Join(dir, "events-cli.jsonl"))
	assert.True(t, os.IsNotExist(err), "files are only created for surfaces that emitted")
	assert.Equal(t, filepath.Join(dir, "events-unknown.jsonl"), sink.Path(""))
}

func TestWebhookSinkSendsEventHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
		got     Event
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))

	sink, err := NewWebhookSink(srv.URL, map[string]string{"authorization": "Bearer hook-secret"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), failedEvent("req-7")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "intakerisk-activation/1", headers.Get("User-Agent"))
	assert.Equal(t, TypeFailed, headers.Get(HeaderEventType))
	assert.Equal(t, "1", headers.Get(HeaderEventVersion))
	assert.Equal(t, "req-7", headers.Get(HeaderRequestID))
	assert.Equal(t, "Bearer hook-secret", headers.Get("Authorization"))
	assert.Equal(t, "req-7", got.RequestID)
	assert.Equal(t, OutcomeError, got.Outcome)
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), completedEvent("req-1", SurfaceAPI)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookSinkDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	require.NoError(t, err)
	err = sink.Deliver(context.Background(), completedEvent("req-1", SurfaceAPI))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 418")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	wait := make(chan struct{})
	sink := &blockingSink{wait: wait}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink})

	for _, id := range []string{"r1", "r2", "r3"} {
		em.Emit(context.Background(), completedEvent(id, SurfaceRenderer))
	}
	assert.NotZero(t, em.Stats().Dropped)

	close(wait)
	em.Close(context.Background())

	em.Emit(context.Background(), completedEvent("late", SurfaceAPI))
	stats := em.Stats()
	assert.Equal(t, uint64(4), stats.Enqueued+stats.Dropped, "an event emitted after Close is counted as dropped")
}

func TestEmitterStatsIsACopy(t *testing.T) {
	sink := &countingSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 4}, []Sink{sink})
	em.Emit(context.Background(), completedEvent("r1", SurfaceCLI))
	em.Close(context.Background())

	stats := em.Stats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Delivered["counting"])
	stats.Delivered["counting"] = 99
	assert.Equal(t, uint64(1), em.Stats().Delivered["counting"])
}

func TestEmitterReadsStatsWhileEmitting(t *testing.T) {
	sink := &countingSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 64, Workers: 2}, []Sink{sink})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				em.Emit(context.Background(), completedEvent("", SurfaceAPI))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = em.Stats()
			}
		}()
	}
	wg.Wait()
	em.Close(context.Background())

	stats := em.Stats()
	assert.Equal(t, uint64(40), stats.Enqueued+stats.Dropped)
	assert.Equal(t, stats.Enqueued, stats.Delivered["counting"])
}

func TestEmitterWebhookIntegration(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	require.NoError(t, err)
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink})

	for i := 0; i < 5; i++ {
		em.Emit(context.Background(), completedEvent("", SurfaceAPI))
	}
	em.Close(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 5)
	ids := map[string]bool{}
	for _, ev := range received {
		assert.Equal(t, TypeCompleted, ev.Type)
		assert.Equal(t, "gpt-4o-mini", ev.Meta.Model)
		ids[ev.RequestID] = true
	}
	assert.Len(t, ids, 5, "each built event gets its own request id")

	stats := em.Stats()
	assert.Equal(t, uint64(5), stats.Delivered[sink.Name()])
	assert.Zero(t, stats.Dropped)
}

type blockingSink struct {
	wait chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, *Event) error {
	<-s.wait
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

type countingSink struct {
	n atomic.Int64
}

func (s *countingSink) Name() string { return "counting" }

func (s *countingSink) Deliver(context.Context, *Event) error {
	s.n.Add(1)
	return nil
}

func (s *countingSink) Close(context.Context) error { return nil }

func newTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot open listener: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
