package activation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/config"
)

// BuildSinks constructs the sinks named in cfg.
func BuildSinks(cfg config.ActivationConfig, logger *zap.Logger) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfg.Sinks))
	for i, sc := range cfg.Sinks {
		switch strings.ToLower(strings.TrimSpace(sc.Type)) {
		case "log":
			sinks = append(sinks, NewLogSink(logger))
		case "webhook":
			s, err := NewWebhookSink(sc.URL, sc.Headers, sc.Timeout)
			if err != nil {
				closeAll(sinks)
				return nil, fmt.Errorf("activation sink %d: %w", i, err)
			}
			sinks = append(sinks, s)
		case "file_jsonl":
			s, err := NewFileSink(sc.Path)
			if err != nil {
				closeAll(sinks)
				return nil, fmt.Errorf("activation sink %d: %w", i, err)
			}
			sinks = append(sinks, s)
		default:
			closeAll(sinks)
			return nil, fmt.Errorf("activation sink %d: unknown type %q", i, sc.Type)
		}
	}
	return sinks, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		_ = s.Close(context.Background())
	}
}
