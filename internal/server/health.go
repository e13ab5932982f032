package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/straja-ai/intakerisk/internal/assessment"
)

const robotsTxt = "User-agent: *\nDisallow: /\n"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

// handleReady reports 503 until a provider credential is configured.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CheckConfigured(); err != nil {
		var aerr *assessment.Error
		if errors.As(err, &aerr) {
			writeError(w, http.StatusServiceUnavailable, aerr.Category, aerr.Details)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Provider not configured", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":   "ready",
		"provider": s.service.ProviderName(),
		"model":    s.service.Model(),
	})
}

// handleRobots keeps crawlers away from every page; intake notes and
// assessments must never be indexed.
func handleRobots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(robotsTxt))
}
