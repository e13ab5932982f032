package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/straja-ai/intakerisk/internal/mockprovider"
)

var (
	mockAddr  string
	mockFault string
	mockFile  string
)

var mockCmd = &cobra.Command{
	Use:   "mock-upstream",
	Short: "Run a local OpenAI-compatible mock that returns canned assessments",
	Long: `Serves POST /v1/chat/completions with a fenced JSON assessment. Point
provider.base_url at it for offline demos.

Faults: error (429 error envelope), no_choices, prose.`,
	RunE: runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (default 127.0.0.1:$MOCK_PROVIDER_PORT or 127.0.0.1:18080)")
	mockCmd.Flags().StringVar(&mockFault, "fault", "", "Answer with a failure instead: error | no_choices | prose")
	mockCmd.Flags().StringVar(&mockFile, "completion-file", "", "File whose contents are returned as the completion")
}

func runMock(cmd *cobra.Command, args []string) error {
	fault := mockprovider.Fault(mockFault)
	switch fault {
	case mockprovider.FaultNone, mockprovider.FaultError, mockprovider.FaultNoChoices, mockprovider.FaultProse:
	default:
		return fmt.Errorf("unknown fault %q", mockFault)
	}

	var completion string
	if mockFile != "" {
		data, err := os.ReadFile(mockFile)
		if err != nil {
			return fmt.Errorf("read completion: %w", err)
		}
		completion = string(data)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mock, err := mockprovider.Listen(mockprovider.Options{
		Addr:       mockAddr,
		Completion: completion,
		Fault:      fault,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mock upstream listening on %s (base_url %s/v1)\n", mock.URL(), mock.URL())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(mock.Serve)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return mock.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
