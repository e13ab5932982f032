package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/activation"
	"github.com/straja-ai/intakerisk/internal/assessment"
	"github.com/straja-ai/intakerisk/internal/config"
	"github.com/straja-ai/intakerisk/internal/provider"
	"github.com/straja-ai/intakerisk/internal/telemetry"
	"github.com/straja-ai/intakerisk/internal/web"
)

// Server wraps the HTTP server components for intakerisk.
type Server struct {
	mux        *http.ServeMux
	cfg        *config.Config
	logger     *zap.Logger
	service    *assessment.Service
	telemetry  *telemetry.Provider
	activation *activation.Emitter
	httpServer *http.Server
}

type options struct {
	provider   provider.Provider
	telemetry  *telemetry.Provider
	activation *activation.Emitter
}

// Option customises a Server.
type Option func(*options)

// WithProvider uses p instead of building one from configuration.
func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

func WithTelemetry(t *telemetry.Provider) Option {
	return func(o *options) { o.telemetry = t }
}

func WithActivation(e *activation.Emitter) Option {
	return func(o *options) { o.activation = e }
}

// New creates a server with all routes registered. A provider that cannot
// be built is not fatal: every assessment then reports the configuration
// error.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := o.provider
	var configErr error
	if p == nil {
		p, configErr = provider.Build(ctx, cfg.Provider, 0)
		if configErr != nil {
			var credErr *provider.CredentialError
			if errors.As(configErr, &credErr) {
				logger.Warn("provider credential missing; assessments will fail until it is set",
					zap.String("provider", credErr.Provider),
					zap.String("env", credErr.EnvVar),
				)
			} else {
				logger.Error("provider unavailable", zap.Error(configErr))
			}
		}
	}

	tel := o.telemetry
	if tel == nil {
		tel, _ = telemetry.NewProvider(ctx, telemetry.Config{}, logger)
	}
	if p != nil {
		p = &tracedProvider{next: p, tel: tel}
	}

	svc := assessment.NewService(p, configErr, assessment.Options{
		Model:           cfg.Provider.Model,
		Temperature:     cfg.Provider.Temperature(),
		RepairJSON:      cfg.Assessment.RepairJSON,
		UpstreamTimeout: cfg.Server.UpstreamTimeout,
	})

	s := &Server{
		mux:        http.NewServeMux(),
		cfg:        cfg,
		logger:     logger,
		service:    svc,
		telemetry:  tel,
		activation: o.activation,
	}

	pages := web.New(web.AssessorFunc(func(ctx context.Context, text string) (*assessment.Assessment, error) {
		return s.runAssessment(ctx, activation.SurfaceRenderer, text)
	}), logger)

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.HandleFunc("/robots.txt", handleRobots)
	s.mux.HandleFunc("/api/score", s.handleScore)
	pages.Register(s.mux)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return s
}

// Handler returns the root handler including request middleware.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withAccessLog(s.mux))
}

// Service exposes the assessment service shared by all surfaces.
func (s *Server) Service() *assessment.Service { return s.service }

// Start runs the HTTP server on the configured address until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the HTTP server on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("intakerisk listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("provider", s.service.ProviderName()),
		zap.String("model", s.service.Model()),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and flushes
// events and telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.activation.Close(ctx)
	s.telemetry.Shutdown(ctx)
	return err
}
