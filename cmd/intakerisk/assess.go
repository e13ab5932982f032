package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/straja-ai/intakerisk/internal/activation"
	"github.com/straja-ai/intakerisk/internal/assessment"
	"github.com/straja-ai/intakerisk/internal/provider"
	"github.com/straja-ai/intakerisk/internal/telemetry"
)

const maxIntakeFileBytes = 1 << 20

var (
	assessColor   bool
	assessTimeout time.Duration
)

var assessCmd = &cobra.Command{
	Use:   "assess [file]",
	Short: "Assess intake text from a file or stdin and print the JSON result",
	Long: `Reads intake text from the given file, or from stdin when the file is
omitted or "-", runs one assessment with the configured provider and prints
the JSON object. Failures print the error object and exit non-zero.

Example:
  intakerisk assess notes/client-42.txt
  pbpaste | intakerisk assess --color`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().BoolVar(&assessColor, "color", false, "Colorize JSON output")
	assessCmd.Flags().DurationVar(&assessTimeout, "timeout", 0, "Bound the upstream call (0 uses server.upstream_timeout)")
}

// errAssessmentFailed signals a reported failure; the error object is
// already on stdout.
var errAssessmentFailed = errors.New("assessment failed")

func runAssess(cmd *cobra.Command, args []string) error {
	text, err := readIntake(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	obs, err := newObservability(ctx)
	if err != nil {
		return err
	}
	defer obs.Close()

	p, configErr := provider.Build(ctx, cfg.Provider, 0)
	timeout := cfg.Server.UpstreamTimeout
	if assessTimeout > 0 {
		timeout = assessTimeout
	}
	svc := assessment.NewService(p, configErr, assessment.Options{
		Model:           cfg.Provider.Model,
		Temperature:     cfg.Provider.Temperature(),
		RepairJSON:      cfg.Assessment.RepairJSON,
		UpstreamTimeout: timeout,
	})

	start := time.Now()
	res, err := svc.Assess(ctx, text)
	elapsed := time.Since(start)

	ev := activation.BuildEvent(activation.BuildParams{
		Surface:    activation.SurfaceCLI,
		Provider:   svc.ProviderName(),
		Model:      svc.Model(),
		Assessment: res,
		Err:        err,
		Total:      elapsed,
	})
	obs.activation.Emit(ctx, ev)
	category := ""
	if ev.Error != nil {
		category = ev.Error.Category
	}
	obs.telemetry.RecordAssessment(ctx, telemetry.AssessmentMetrics{
		Surface:  activation.SurfaceCLI,
		Outcome:  string(ev.Outcome),
		Category: category,
		Provider: ev.Meta.Provider,
		Duration: elapsed,
	})

	out := cmd.OutOrStdout()
	if err != nil {
		body := map[string]string{"error": "Failed to process request", "details": err.Error()}
		var aerr *assessment.Error
		if errors.As(err, &aerr) {
			body = map[string]string{"error": aerr.Category}
			if aerr.Details != "" {
				body["details"] = aerr.Details
			}
		}
		data, _ := json.Marshal(body)
		writeJSON(out, data)
		return errAssessmentFailed
	}

	writeJSON(out, res.Raw)
	return nil
}

func readIntake(stdin io.Reader, args []string) (string, error) {
	var r io.Reader = stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open intake: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxIntakeFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("read intake: %w", err)
	}
	if len(data) > maxIntakeFileBytes {
		return "", fmt.Errorf("intake exceeds %d bytes", maxIntakeFileBytes)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, data []byte) {
	out := pretty.Pretty(data)
	if assessColor {
		out = pretty.Color(out, nil)
	}
	_, _ = w.Write(out)
}
