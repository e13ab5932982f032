// Package web serves the intake capture page and the results page. The
// intake text travels between the two in the browser's localStorage under
// the key "intake"; the server keeps no copy.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/assessment"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	blankPrompt     = "Please enter some client information first!"
	fallbackMessage = "Failed to process request"

	// maxFormBytes bounds the capture form and fragment request bodies.
	maxFormBytes = 1 << 20
)

// Assessor scores intake text. *assessment.Service satisfies it.
type Assessor interface {
	Assess(ctx context.Context, intakeText string) (*assessment.Assessment, error)
}

// AssessorFunc adapts a function to Assessor.
type AssessorFunc func(ctx context.Context, intakeText string) (*assessment.Assessment, error)

func (f AssessorFunc) Assess(ctx context.Context, intakeText string) (*assessment.Assessment, error) {
	return f(ctx, intakeText)
}

// Handler renders the two pages and the assessment fragment.
type Handler struct {
	assessor Assessor
	logger   *zap.Logger
}

func New(assessor Assessor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		assessor: assessor,
		logger:   logger,
	}
}

// Register mounts the page routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("/", h.handleCapture)
	mux.HandleFunc("/intake", h.handleIntake)
	mux.HandleFunc("/results", h.handleResults)
	mux.HandleFunc("/results/assessment", h.handleAssessment)
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.render(w, http.StatusOK, "capture", capturePage{BlankPrompt: blankPrompt})
}

func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "intake too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("intake")
	if strings.TrimSpace(text) == "" {
		h.render(w, http.StatusUnprocessableEntity, "capture", capturePage{
			Intake:      text,
			Prompt:      blankPrompt,
			BlankPrompt: blankPrompt,
		})
		return
	}

	// Without script the form posts here; the reply writes the browser's
	// storage and moves on to /results.
	h.render(w, http.StatusOK, "handoff", handoffPage{Intake: text})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.render(w, http.StatusOK, "results", nil)
}

type fragmentRequest struct {
	IntakeText *string `json:"intakeText"`
}

func (h *Handler) handleAssessment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req fragmentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(&req); err != nil {
		h.renderError(w, assessment.BodyError(err))
		return
	}
	if req.IntakeText == nil || strings.TrimSpace(*req.IntakeText) == "" {
		h.renderError(w, assessment.InputError())
		return
	}

	res, err := h.assessor.Assess(r.Context(), *req.IntakeText)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, http.StatusOK, "result", newResultView(res.Result))
}

// renderError shows the error category only; details stay in the logs.
func (h *Handler) renderError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, fallbackMessage
	var aerr *assessment.Error
	if errors.As(err, &aerr) {
		status, message = aerr.Status, aerr.Category
	}
	h.render(w, status, "error", errorView{Message: message})
}

// render executes a template into a buffer so a failed render never leaves a
// partial page behind.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Robots-Tag", "noindex, nofollow")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
