package activation

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events as structured log entries.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("activation")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("type", ev.Type),
		zap.String("request_id", ev.RequestID),
		zap.String("surface", ev.Meta.Surface),
		zap.String("provider", ev.Meta.Provider),
		zap.String("model", ev.Meta.Model),
		zap.String("outcome", string(ev.Outcome)),
		zap.Int("status", ev.Status),
		zap.Float64("provider_ms", ev.TimingMs.Provider),
		zap.Float64("total_ms", ev.TimingMs.Total),
	}
	if ev.Result != nil {
		fields = append(fields,
			zap.Float64("score", ev.Result.Score),
			zap.String("level", ev.Result.Level),
			zap.String("recommendation", ev.Result.Recommendation),
			zap.Int("risk_count", ev.Result.RiskCount),
		)
	}
	if ev.Error != nil {
		fields = append(fields,
			zap.String("kind", ev.Error.Kind),
			zap.String("category", ev.Error.Category),
		)
	}
	s.logger.Info("assessment", fields...)
	return nil
}

// Close is a no-op; the process owner syncs the logger.
func (s *LogSink) Close(context.Context) error {
	return nil
}
