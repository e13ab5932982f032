package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/activation"
)

const maxEventBytes = 64 * 1024

var receiverAddr string

var receiverCmd = &cobra.Command{
	Use:   "event-receiver",
	Short: "Run a local webhook that logs assessment events",
	Long: `Accepts assessment events POSTed by a webhook activation sink and logs
them. Useful when developing a webhook consumer.

Example config:
  activation:
    sinks:
      - type: webhook
        url: http://127.0.0.1:8099/activation`,
	RunE: runReceiver,
}

func init() {
	receiverCmd.Flags().StringVar(&receiverAddr, "addr", ":8099", "Listen address for the event receiver")
}

func runReceiver(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/", eventHandler(logger))

	srv := &http.Server{
		Addr:              receiverAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("event receiver listening", zap.String("addr", receiverAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("receiver: %w", err)
	}
	return nil
}

func eventHandler(logger *zap.Logger) http.Handler {
	sink := activation.NewLogSink(logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}

		var ev activation.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			logger.Warn("received malformed event", zap.Int("bytes", len(body)), zap.Error(err))
			http.Error(w, "invalid event", http.StatusBadRequest)
			return
		}
		if err := sink.Deliver(r.Context(), &ev); err != nil {
			http.Error(w, "log failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
	})
}
