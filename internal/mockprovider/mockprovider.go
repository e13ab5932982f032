// Package mockprovider runs a local OpenAI-compatible server that answers
// every chat completion with a canned assessment.
package mockprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPort    = 18080
	defaultDelayMS = 50
)

// DefaultCompletion is the fenced assessment returned when no completion is
// configured.
const DefaultCompletion = "```json\n" + `{
  "score": 45,
  "level": "MEDIUM",
  "risks": ["Lives alone", "Falls history"],
  "summary": "Client lives alone and reports a recent fall. Support needs are moderate and manageable with a safety plan.",
  "recommendation": "ACCEPT_WITH_CONDITIONS"
}` + "\n```"

// Fault makes the mock answer with a specific failure instead of a completion.
type Fault string

const (
	FaultNone      Fault = ""
	FaultError     Fault = "error"      // OpenAI error envelope, HTTP 429
	FaultNoChoices Fault = "no_choices" // 200 with an empty choices array
	FaultProse     Fault = "prose"      // 200 with a completion that is not JSON
)

// Options configures the mock server. Zero values fall back to
// MOCK_PROVIDER_PORT and MOCK_DELAY_MS.
type Options struct {
	Addr       string
	Delay      time.Duration
	Completion string
	Fault      Fault
	Logger     *zap.Logger
}

// Server is a running mock upstream.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
	url    string
}

// Listen binds the mock server's address without serving yet.
func Listen(opts Options) (*Server, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		port := strings.TrimSpace(os.Getenv("MOCK_PROVIDER_PORT"))
		if port == "" {
			port = strconv.Itoa(defaultPort)
		}
		addr = "127.0.0.1:" + port
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mockprovider")

	if opts.Delay <= 0 {
		opts.Delay = time.Duration(defaultDelayMS) * time.Millisecond
		if val := strings.TrimSpace(os.Getenv("MOCK_DELAY_MS")); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
				opts.Delay = time.Duration(parsed) * time.Millisecond
			}
		}
	}
	opts.Logger = logger

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	return &Server{
		srv: &http.Server{
			Handler:           Handler(opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
		url:    "http://" + ln.Addr().String(),
	}, nil
}

// URL returns the base URL, e.g. http://127.0.0.1:18080.
func (s *Server) URL() string { return s.url }

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	s.logger.Info("mock provider listening", zap.String("url", s.url))
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock provider: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// StartMockProvider listens and serves in the background. It returns a
// shutdown function and the base URL.
func StartMockProvider(opts Options) (func(context.Context) error, string, error) {
	s, err := Listen(opts)
	if err != nil {
		return nil, "", err
	}
	go func() {
		if err := s.Serve(); err != nil {
			s.logger.Error("mock provider server error", zap.Error(err))
		}
	}()
	return s.Shutdown, s.URL(), nil
}

// Handler returns the mock's routes. Delay and Completion are used as given.
func Handler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	completion := opts.Completion
	if completion == "" {
		completion = DefaultCompletion
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("mock upstream request", zap.String("method", r.Method), zap.String("path", r.URL.Path))

		p := r.URL.Path
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}

		if r.Method == http.MethodPost && (p == "/v1/chat/completions" || p == "/chat/completions") {
			writeChatCompletion(w, r, opts.Delay, completion, opts.Fault)
			return
		}

		if r.Method == http.MethodGet && (p == "/v1/models" || p == "/models") {
			writeModels(w)
			return
		}

		writeErrorJSON(w, http.StatusNotFound, "Not found", "invalid_request_error")
	})
	return mux
}

func writeErrorJSON(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    typ,
		},
	})
}

func writeChatCompletion(w http.ResponseWriter, r *http.Request, delay time.Duration, completion string, fault Fault) {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	var req struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	model := req.Model
	if model == "" {
		model = "mock-llm"
	}

	choices := []map[string]any{
		{
			"index": 0,
			"message": map[string]string{
				"role":    "assistant",
				"content": completion,
			},
			"finish_reason": "stop",
		},
	}

	switch fault {
	case FaultError:
		writeErrorJSON(w, http.StatusTooManyRequests, "You exceeded your current quota, please check your plan and billing details.", "insufficient_quota")
		return
	case FaultNoChoices:
		choices = []map[string]any{}
	case FaultProse:
		choices[0]["message"] = map[string]string{
			"role":    "assistant",
			"content": "I'm sorry, but I can't assess this client without more information.",
		}
	}

	resp := map[string]any{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": choices,
		"usage": map[string]int{
			"prompt_tokens":     180,
			"completion_tokens": 60,
			"total_tokens":      240,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModels(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []map[string]any{
			{
				"id":       "mock-llm",
				"object":   "model",
				"owned_by": "mock",
			},
		},
	})
}
