package activation

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/intakerisk/internal/assessment"
)

// Outcome is the result of one assessment from the service's perspective.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Surfaces an assessment can be requested from.
const (
	SurfaceAPI      = "api"
	SurfaceRenderer = "renderer"
	SurfaceCLI      = "cli"
)

const eventVersion = "1"

// Event types.
const (
	TypeCompleted = "assessment.completed"
	TypeFailed    = "assessment.failed"
)

type Meta struct {
	Surface  string `json:"surface"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ResultSummary carries the scalar fields of a successful assessment. The
// summary text and risk strings are deliberately absent.
type ResultSummary struct {
	Score          float64 `json:"score"`
	Level          string  `json:"level"`
	Recommendation string  `json:"recommendation"`
	RiskCount      int     `json:"risk_count"`
}

type Failure struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
}

type TimingMs struct {
	Provider float64 `json:"provider"`
	Total    float64 `json:"total"`
}

// Event is the metadata-only record of one assessment. It never contains the
// intake text or the model's completion.
type Event struct {
	Version   string         `json:"version"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id"`
	Meta      Meta           `json:"meta"`
	Outcome   Outcome        `json:"outcome"`
	Status    int            `json:"status"`
	Result    *ResultSummary `json:"result,omitempty"`
	Error     *Failure       `json:"error,omitempty"`
	TimingMs  TimingMs       `json:"timing_ms"`
}

// BuildParams collects inputs needed to assemble an event.
type BuildParams struct {
	RequestID  string
	Surface    string
	Provider   string
	Model      string
	Assessment *assessment.Assessment
	Err        error
	Upstream   time.Duration
	Total      time.Duration
}

// BuildEvent creates an event from a finished assessment.
func BuildEvent(params BuildParams) *Event {
	ev := &Event{
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		RequestID: ensureRequestID(params.RequestID),
		Meta: Meta{
			Surface:  params.Surface,
			Provider: params.Provider,
			Model:    params.Model,
		},
		TimingMs: TimingMs{
			Provider: durationMillis(params.Upstream),
			Total:    durationMillis(params.Total),
		},
	}

	if params.Err != nil {
		ev.Type = TypeFailed
		ev.Outcome = OutcomeError
		ev.Status = http.StatusInternalServerError
		ev.Error = &Failure{Kind: "internal", Category: "Failed to process request"}
		var aerr *assessment.Error
		if errors.As(params.Err, &aerr) {
			ev.Status = aerr.Status
			ev.Error = &Failure{Kind: string(aerr.Kind), Category: aerr.Category}
		}
		return ev
	}

	ev.Type = TypeCompleted
	ev.Outcome = OutcomeOK
	ev.Status = http.StatusOK
	if params.Assessment != nil {
		r := params.Assessment.Result
		ev.Result = &ResultSummary{
			Score:          r.Score,
			Level:          r.Level,
			Recommendation: r.Recommendation,
			RiskCount:      len(r.Risks),
		}
	}
	return ev
}

func ensureRequestID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
