package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/straja-ai/intakerisk/internal/config"
	"github.com/straja-ai/intakerisk/internal/inference"
)

// Provider is the interface for upstream chat-completion services.
type Provider interface {
	// Name is the human-readable service label used in error categories,
	// e.g. "OpenAI".
	Name() string
	ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error)
}

// ErrMalformedResponse is returned when the upstream reply lacks the
// expected choice/message structure.
var ErrMalformedResponse = errors.New("malformed upstream response")

// APIError is an explicit error envelope returned by the upstream service.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s error: %s (type=%s)", strings.ToLower(e.Provider), e.Message, e.Type)
	}
	return fmt.Sprintf("%s error: %s", strings.ToLower(e.Provider), e.Message)
}

// CredentialError reports that the API key environment variable is empty.
type CredentialError struct {
	Provider string
	EnvVar   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s API key not configured", e.Provider)
}

// Label returns the display name for a provider type.
func Label(typ string) string {
	switch strings.ToLower(typ) {
	case config.ProviderGemini:
		return "Gemini"
	default:
		return "OpenAI"
	}
}

// Build constructs the configured provider. It returns a *CredentialError
// when the key environment variable is empty.
func Build(ctx context.Context, cfg config.ProviderConfig, timeout time.Duration) (Provider, error) {
	apiKey := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if apiKey == "" {
		return nil, &CredentialError{Provider: Label(cfg.Type), EnvVar: cfg.APIKeyEnv}
	}

	switch strings.ToLower(cfg.Type) {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.BaseURL, apiKey, timeout, 0), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.BaseURL, apiKey, timeout)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}
