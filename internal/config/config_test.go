package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Simulation.HistoryWindow)
	assert.Equal(t, 0.75, cfg.Simulation.JoinProbability)
	assert.Equal(t, 3, cfg.LLM.Retries)
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  cors_origins: ["http://localhost:3000"]
llm:
  model: gpt-4o
  retry_delay: 500ms
simulation:
  history_window: 5
  auto_advance: 2m
images:
  enabled: true
  async: true
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.RetryDelay)
	assert.Equal(t, 5, cfg.Simulation.HistoryWindow)
	assert.Equal(t, 2*time.Minute, cfg.Simulation.AutoAdvance)
	assert.True(t, cfg.Images.Enabled)
	assert.Equal(t, "1024x1024", cfg.Images.Size)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  join_probability: 1.5\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "join_probability")

	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":       "sk-test",
		"BLOBSIM_ADMIN_KEY":    "secret",
		"BLOBSIM_PORT":         "7000",
		"CORS_ORIGINS":         " https://a.example , https://b.example,",
		"BLOBSIM_IMAGES":       "true",
		"BLOBSIM_AUTO_ADVANCE": "45s",
		"BLOBSIM_LOG_LEVEL":    "warn",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "secret", cfg.Server.AdminKey)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Images.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Simulation.AutoAdvance)
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}

func TestEnvIgnoresBadValues(t *testing.T) {
	env := map[string]string{"BLOBSIM_PORT": "eighty", "BLOBSIM_IMAGES": "maybe"}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.False(t, cfg.Images.Enabled)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("BLOBSIM_PORT", "8123")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Server.Port)
}
