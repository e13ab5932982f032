package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/straja-ai/intakerisk/internal/provider"
)

// Options tunes how a Service talks to its provider.
type Options struct {
	Model       string
	Temperature float64
	// RepairJSON attempts a JSON repair pass before reporting a parse failure.
	RepairJSON bool
	// UpstreamTimeout bounds the provider call; zero means no bound beyond ctx.
	UpstreamTimeout time.Duration
}

// Service turns intake text into a validated assessment by way of a single
// provider call. It holds no per-request state.
type Service struct {
	provider  provider.Provider
	configErr error
	opts      Options
}

// NewService returns a Service. When p is nil, configErr explains why the
// provider could not be built and is reported on every call.
func NewService(p provider.Provider, configErr error, opts Options) *Service {
	return &Service{
		provider:  p,
		configErr: configErr,
		opts:      opts,
	}
}

// ProviderName returns the label of the backing provider.
func (s *Service) ProviderName() string {
	if s.provider != nil {
		return s.provider.Name()
	}
	var credErr *provider.CredentialError
	if errors.As(s.configErr, &credErr) {
		return credErr.Provider
	}
	return "OpenAI"
}

// Model returns the configured model identifier.
func (s *Service) Model() string { return s.opts.Model }

// CheckConfigured reports a configuration *Error when no provider is
// available. It never touches the network.
func (s *Service) CheckConfigured() error {
	if s.provider != nil {
		return nil
	}

	var credErr *provider.CredentialError
	if errors.As(s.configErr, &credErr) {
		return configurationError(credErr.Provider, credErr.EnvVar, s.configErr)
	}

	e := &Error{
		Kind:     KindConfiguration,
		Status:   http.StatusInternalServerError,
		Category: "Provider not configured",
		Err:      s.configErr,
	}
	if s.configErr != nil {
		e.Details = s.configErr.Error()
	}
	return e
}

// Assess scores intakeText. Failures are always returned as *Error.
func (s *Service) Assess(ctx context.Context, intakeText string) (*Assessment, error) {
	if err := s.CheckConfigured(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(intakeText) == "" {
		return nil, InputError()
	}

	req := BuildRequest(s.opts.Model, s.opts.Temperature, intakeText)

	if s.opts.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.UpstreamTimeout)
		defer cancel()
	}

	resp, err := s.provider.ChatCompletion(ctx, req)
	if err != nil {
		var apiErr *provider.APIError
		switch {
		case errors.As(err, &apiErr):
			return nil, upstreamError(s.provider.Name(), apiErr.Message, err)
		case errors.Is(err, provider.ErrMalformedResponse):
			return nil, upstreamShapeError(s.provider.Name(), err)
		default:
			return nil, processingError(err)
		}
	}

	return s.parse(resp.Message.Content)
}

func (s *Service) parse(content string) (*Assessment, error) {
	text := StripFences(content)

	obj, err := decodeObject(text)
	if err != nil && !errors.Is(err, errNotObject) && s.opts.RepairJSON {
		if repaired, rerr := jsonrepair.JSONRepair(text); rerr == nil {
			if robj, perr := decodeObject(repaired); perr == nil {
				obj, err, text = robj, nil, repaired
			}
		}
	}
	switch {
	case errors.Is(err, errNotObject):
		return nil, formatError()
	case err != nil:
		return nil, parseError(err)
	}

	if !hasRequiredFields(obj) {
		return nil, formatError()
	}

	return &Assessment{
		Raw:    json.RawMessage(text),
		Result: viewOf(obj),
	}, nil
}
