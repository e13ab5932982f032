package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/activation"
	"github.com/straja-ai/intakerisk/internal/assessment"
)

type scoreRequest struct {
	IntakeText *string `json:"intakeText"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleScore serves POST /api/score.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	ctx := r.Context()
	start := time.Now()

	// The credential check precedes any inspection of the request.
	if err := s.service.CheckConfigured(); err != nil {
		s.finish(ctx, activation.SurfaceAPI, start, 0, nil, err)
		writeAssessmentError(w, err)
		return
	}

	text, err := s.decodeScoreRequest(w, r)
	if err != nil {
		s.finish(ctx, activation.SurfaceAPI, start, 0, nil, err)
		writeAssessmentError(w, err)
		return
	}

	res, err := s.runAssessment(ctx, activation.SurfaceAPI, text)
	if err != nil {
		writeAssessmentError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Raw); err != nil {
		s.logger.Debug("write score response", zap.Error(err))
	}
}

// decodeScoreRequest reads the bounded body and extracts intakeText. A
// missing, null or non-string value is reported as missing input.
func (s *Server) decodeScoreRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxRequestBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", &assessment.Error{
				Kind:     assessment.KindInput,
				Status:   http.StatusRequestEntityTooLarge,
				Category: "Request body too large",
				Details:  fmt.Sprintf("limit is %d bytes", maxErr.Limit),
				Err:      err,
			}
		}
		return "", assessment.BodyError(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("body must be a JSON object")
		}
		return "", assessment.BodyError(err)
	}

	var req scoreRequest
	if err := json.Unmarshal(body, &req); err != nil || req.IntakeText == nil {
		return "", assessment.InputError()
	}
	return *req.IntakeText, nil
}

func writeAssessmentError(w http.ResponseWriter, err error) {
	var aerr *assessment.Error
	if !errors.As(err, &aerr) {
		writeError(w, http.StatusInternalServerError, "Failed to process request", err.Error())
		return
	}
	writeError(w, aerr.Status, aerr.Category, aerr.Details)
}

// writeError writes the {"error","details"} envelope.
func writeError(w http.ResponseWriter, status int, category, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   category,
		Details: details,
	})
}
