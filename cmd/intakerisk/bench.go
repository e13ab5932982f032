package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/straja-ai/intakerisk/internal/assessment"
	"github.com/straja-ai/intakerisk/internal/mockprovider"
	"github.com/straja-ai/intakerisk/internal/provider"
)

var (
	benchN           int
	benchConcurrency int
	benchIntake      string
	benchURL         string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure assessment latency against a running server or an in-process mock",
	Long: `Runs the assessment n times and prints average, p50 and p95 latency.

With --url the requests go to a running /api/score endpoint. Without it the
assessment service runs in-process against the local mock upstream, which
measures the request, sanitization and validation overhead alone.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchN, "n", "n", 200, "Number of iterations")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 1, "Concurrent requests")
	benchCmd.Flags().StringVar(&benchIntake, "intake", "Client is 84, lives alone, fell twice this year and takes 11 medications.", "Intake text to assess")
	benchCmd.Flags().StringVar(&benchURL, "url", "", "Score endpoint, e.g. http://localhost:8080/api/score")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if benchN <= 0 {
		benchN = 1
	}
	if benchConcurrency <= 0 {
		benchConcurrency = 1
	}

	var once func(context.Context) error
	if benchURL != "" {
		once = httpScorer(benchURL, benchIntake)
	} else {
		mock, err := mockprovider.Listen(mockprovider.Options{Addr: "127.0.0.1:0", Delay: time.Microsecond, Logger: logger})
		if err != nil {
			return err
		}
		go func() { _ = mock.Serve() }()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = mock.Shutdown(shutdownCtx)
		}()

		svc := assessment.NewService(provider.NewOpenAI(mock.URL()+"/v1", "mock", 0, 0), nil, assessment.Options{
			Model:       cfg.Provider.Model,
			Temperature: cfg.Provider.Temperature(),
		})
		once = func(ctx context.Context) error {
			_, err := svc.Assess(ctx, benchIntake)
			return err
		}
	}

	// Warmup
	for i := 0; i < 5; i++ {
		if err := once(ctx); err != nil {
			return fmt.Errorf("warmup failed: %w", err)
		}
	}

	var (
		mu        sync.Mutex
		durations = make([]time.Duration, 0, benchN)
		failures  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(benchConcurrency)
	for i := 0; i < benchN; i++ {
		g.Go(func() error {
			start := time.Now()
			err := once(gctx)
			d := time.Since(start)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return nil
			}
			durations = append(durations, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summarize(durations, failures))
	return nil
}

func summarize(durations []time.Duration, failures int) string {
	if len(durations) == 0 {
		return fmt.Sprintf("bench: n=0 errors=%d", failures)
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations)-1)*0.95)].Microseconds()) / 1000.0

	return fmt.Sprintf("bench: n=%d errors=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f",
		len(durations), failures, avg, p50, p95)
}

func httpScorer(url, intake string) func(context.Context) error {
	client := &http.Client{Timeout: 2 * time.Minute}
	payload, _ := json.Marshal(map[string]string{"intakeText": intake})
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}
