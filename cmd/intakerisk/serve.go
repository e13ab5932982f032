package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/straja-ai/intakerisk/internal/mockprovider"
	"github.com/straja-ai/intakerisk/internal/provider"
	"github.com/straja-ai/intakerisk/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr    string
	mockUpstream bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake web application and the /api/score endpoint",
	Long: `Starts the HTTP server with the intake form at /, the results page at
/results and the JSON endpoint POST /api/score.

With --mock-upstream a local OpenAI-compatible mock answers every
completion with a canned assessment, so no API key is needed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&mockUpstream, "mock-upstream", false, "Answer completions from a local mock instead of the real provider")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	obs, err := newObservability(ctx)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithTelemetry(obs.telemetry),
		server.WithActivation(obs.activation),
	}

	var mock *mockprovider.Server
	if mockUpstream {
		mock, err = mockprovider.Listen(mockprovider.Options{Addr: "127.0.0.1:0", Logger: logger})
		if err != nil {
			obs.Close()
			return err
		}
		opts = append(opts, server.WithProvider(provider.NewOpenAI(mock.URL()+"/v1", "mock", 0, 0)))
		logger.Warn("serving with mock upstream; assessments are canned", zap.String("mock_url", mock.URL()))
	}

	srv := server.New(ctx, cfg, logger, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if mock != nil {
		g.Go(mock.Serve)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Server.Shutdown also flushes events and telemetry.
		err := srv.Shutdown(shutdownCtx)
		if mock != nil {
			err = errors.Join(err, mock.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}
