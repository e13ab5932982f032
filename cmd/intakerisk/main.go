package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/activation"
	"github.com/straja-ai/intakerisk/internal/config"
	"github.com/straja-ai/intakerisk/internal/logging"
	"github.com/straja-ai/intakerisk/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	configPath string
	envFile    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "intakerisk",
	Short: "Client intake risk assessment backed by an LLM",
	Long: `intakerisk collects free-text client intake notes, asks an external
chat-completion model for a structured risk assessment and renders the result.

Run "intakerisk serve" to start the web application.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "intakerisk.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before config (missing is fine)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(receiverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// observability holds the telemetry provider and event emitter shared by
// the commands that run assessments.
type observability struct {
	telemetry  *telemetry.Provider
	activation *activation.Emitter
}

func newObservability(ctx context.Context) (*observability, error) {
	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.Service,
		Version:  version,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	sinks, err := activation.BuildSinks(cfg.Activation, logger)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, err
	}
	var em *activation.Emitter
	if len(sinks) > 0 {
		em = activation.NewEmitter(activation.EmitterConfig{
			QueueSize: cfg.Activation.QueueSize,
			Workers:   cfg.Activation.Workers,
			Logger:    logger,
		}, sinks)
	}
	return &observability{telemetry: tel, activation: em}, nil
}

func (o *observability) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.activation.Close(ctx)
	o.telemetry.Shutdown(ctx)
}
