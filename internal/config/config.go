package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds intakerisk configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Activation ActivationConfig `yaml:"activation"`
}

type ServerConfig struct {
	Addr                string        `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	MaxRequestBodyBytes int64         `yaml:"max_request_body_bytes"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	// UpstreamTimeout bounds the provider call. Zero leaves it unbounded.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

type ProviderConfig struct {
	Type      string   `yaml:"type"`        // openai | gemini
	BaseURL   string   `yaml:"base_url"`    // e.g. "https://api.openai.com/v1"
	APIKeyEnv string   `yaml:"api_key_env"` // e.g. "OPENAI_API_KEY"
	Model     string   `yaml:"model"`
	Temp      *float64 `yaml:"temperature"`
}

// Temperature returns the configured sampling temperature.
func (p ProviderConfig) Temperature() float64 {
	if p.Temp == nil {
		return DefaultTemperature
	}
	return *p.Temp
}

type AssessmentConfig struct {
	// RepairJSON runs a JSON repair pass on completions that fail to parse.
	RepairJSON bool `yaml:"repair_json"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

type ActivationConfig struct {
	QueueSize int                    `yaml:"queue_size"`
	Workers   int                    `yaml:"workers"`
	Sinks     []ActivationSinkConfig `yaml:"sinks"`
}

type ActivationSinkConfig struct {
	Type    string            `yaml:"type"` // log | webhook | file_jsonl
	URL     string            `yaml:"url"`
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultTemperature = 0.2
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// LoadEnv loads KEY=VALUE pairs from the given dotenv files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":8080",
			MaxRequestBodyBytes: 256 * 1024,
			ReadHeaderTimeout:   10 * time.Second,
			ReadTimeout:         30 * time.Second,
			IdleTimeout:         120 * time.Second,
		},
		Provider: ProviderConfig{
			Type: ProviderOpenAI,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
			Service:  "intakerisk",
		},
		Activation: ActivationConfig{
			QueueSize: 256,
			Workers:   1,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		cfg.Server.MaxRequestBodyBytes = 256 * 1024
	}

	cfg.Provider.Type = strings.ToLower(strings.TrimSpace(cfg.Provider.Type))
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = ProviderOpenAI
	}
	switch cfg.Provider.Type {
	case ProviderOpenAI:
		if cfg.Provider.APIKeyEnv == "" {
			cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Provider.Model == "" {
			cfg.Provider.Model = DefaultOpenAIModel
		}
	case ProviderGemini:
		if cfg.Provider.APIKeyEnv == "" {
			cfg.Provider.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Provider.Model == "" {
			cfg.Provider.Model = DefaultGeminiModel
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "intakerisk"
	}

	if cfg.Activation.QueueSize <= 0 {
		cfg.Activation.QueueSize = 256
	}
	if cfg.Activation.Workers <= 0 {
		cfg.Activation.Workers = 1
	}
}
