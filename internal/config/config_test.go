package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Type)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Provider.APIKeyEnv)
	assert.Equal(t, DefaultOpenAIModel, cfg.Provider.Model)
	assert.InDelta(t, DefaultTemperature, cfg.Provider.Temperature(), 1e-9)
	assert.Zero(t, cfg.Server.UpstreamTimeout)
	assert.False(t, cfg.Assessment.RepairJSON)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intakerisk.yaml")
	data := `
server:
  addr: "127.0.0.1:9090"
  upstream_timeout: 45s
provider:
  type: gemini
  temperature: 0.3
assessment:
  repair_json: true
activation:
  sinks:
    - type: webhook
      url: https://hooks.example.com/intake
      timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Server.UpstreamTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, ProviderGemini, cfg.Provider.Type)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Provider.APIKeyEnv)
	assert.Equal(t, DefaultGeminiModel, cfg.Provider.Model)
	assert.InDelta(t, 0.3, cfg.Provider.Temperature(), 1e-9)
	assert.True(t, cfg.Assessment.RepairJSON)
	require.Len(t, cfg.Activation.Sinks, 1)
	assert.Equal(t, 3*time.Second, cfg.Activation.Sinks[0].Timeout)
	require.NoError(t, Validate(cfg))
}

func TestLoadNormalizesProviderType(t *testing.T) {
	for _, typ := range []string{"OpenAI", " GEMINI "} {
		path := filepath.Join(t.TempDir(), "intakerisk.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider:\n  type: \""+typ+"\"\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.NoError(t, Validate(cfg), typ)
		assert.NotEmpty(t, cfg.Provider.APIKeyEnv, typ)
		assert.NotEmpty(t, cfg.Provider.Model, typ)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Provider = ProviderConfig{Type: "OpenAI"}
	applyDefaults(cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Type)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Provider.APIKeyEnv)
	assert.Equal(t, DefaultOpenAIModel, cfg.Provider.Model)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadEnv(t *testing.T) {
	const key = "INTAKERISK_DOTENV_TEST_KEY"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(key+"=from-dotenv\n"), 0o600))

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	// Existing variables win over the file.
	require.NoError(t, os.Setenv(key, "from-process"))
	require.NoError(t, LoadEnv(envPath))
	assert.Equal(t, "from-process", os.Getenv(key))
}
