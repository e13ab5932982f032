package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/activation"
	"github.com/straja-ai/intakerisk/internal/assessment"
	"github.com/straja-ai/intakerisk/internal/inference"
	"github.com/straja-ai/intakerisk/internal/provider"
	"github.com/straja-ai/intakerisk/internal/redact"
	"github.com/straja-ai/intakerisk/internal/telemetry"
)

type upstreamTimingKey struct{}

// upstreamTiming accumulates provider latency for one assessment.
type upstreamTiming struct {
	nanos atomic.Int64
}

// tracedProvider wraps the configured provider with a span and latency
// accounting.
type tracedProvider struct {
	next provider.Provider
	tel  *telemetry.Provider
}

func (p *tracedProvider) Name() string { return p.next.Name() }

func (p *tracedProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	ctx, span := p.tel.StartSpan(ctx, "intakerisk.upstream", map[string]interface{}{
		"upstream.provider": p.next.Name(),
		"upstream.model":    req.Model,
	})
	start := time.Now()
	resp, err := p.next.ChatCompletion(ctx, req)
	elapsed := time.Since(start)

	if t, ok := ctx.Value(upstreamTimingKey{}).(*upstreamTiming); ok {
		t.nanos.Add(int64(elapsed))
	}
	attrs := map[string]interface{}{"upstream.duration_ms": float64(elapsed) / float64(time.Millisecond)}
	if resp != nil {
		attrs["upstream.total_tokens"] = resp.Usage.TotalTokens
	}
	telemetry.EndSpan(span, attrs, err)
	return resp, err
}

// runAssessment is the single entry point for every surface. It wraps the
// service call with tracing, metrics, logging and an assessment event.
func (s *Server) runAssessment(ctx context.Context, surface, text string) (*assessment.Assessment, error) {
	start := time.Now()
	ctx, span := s.telemetry.StartSpan(ctx, "intakerisk.assess", map[string]interface{}{
		"assessment.surface":  surface,
		"assessment.provider": s.service.ProviderName(),
		"assessment.model":    s.service.Model(),
	})

	timing := &upstreamTiming{}
	ctx = context.WithValue(ctx, upstreamTimingKey{}, timing)

	res, err := s.service.Assess(ctx, text)
	s.finish(ctx, surface, start, time.Duration(timing.nanos.Load()), res, err)

	attrs := map[string]interface{}{"assessment.outcome": string(activation.OutcomeOK)}
	if err != nil {
		attrs["assessment.outcome"] = string(activation.OutcomeError)
		var aerr *assessment.Error
		if errors.As(err, &aerr) {
			attrs["assessment.kind"] = string(aerr.Kind)
		}
	}
	telemetry.EndSpan(span, attrs, err)
	return res, err
}

// finish records metrics, the log line and the event for one assessment,
// including those rejected before reaching the service.
func (s *Server) finish(ctx context.Context, surface string, start time.Time, upstream time.Duration, res *assessment.Assessment, err error) {
	total := time.Since(start)
	requestID := RequestIDFromContext(ctx)

	ev := activation.BuildEvent(activation.BuildParams{
		RequestID:  requestID,
		Surface:    surface,
		Provider:   s.service.ProviderName(),
		Model:      s.service.Model(),
		Assessment: res,
		Err:        err,
		Upstream:   upstream,
		Total:      total,
	})

	category := ""
	if ev.Error != nil {
		category = ev.Error.Category
	}
	s.telemetry.RecordAssessment(ctx, telemetry.AssessmentMetrics{
		Surface:  surface,
		Outcome:  string(ev.Outcome),
		Category: category,
		Provider: ev.Meta.Provider,
		Duration: total,
		Upstream: upstream,
	})

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("surface", surface),
		zap.String("provider", ev.Meta.Provider),
		zap.Int("status", ev.Status),
		zap.Duration("duration", total),
		zap.Duration("upstream", upstream),
	}
	switch {
	case err == nil:
		s.logger.Info("assessment completed", append(fields,
			zap.String("level", ev.Result.Level),
			zap.String("recommendation", ev.Result.Recommendation),
		)...)
	case ev.Status >= 500:
		s.logger.Error("assessment failed", append(fields,
			zap.String("category", category),
			zap.String("error", redact.Error(err)),
		)...)
	default:
		s.logger.Info("assessment rejected", append(fields, zap.String("category", category))...)
	}

	s.activation.Emit(ctx, ev)
}
