package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendOpenRouter, cfg.AI.Backend)
	assert.True(t, cfg.Pipeline.AlignCaptionsToCrops)
	assert.Equal(t, 45*time.Second, cfg.OpenRouter.Timeout())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.OpenRouter.APIKey = "secret"
	cfg.Output.Format = "webp"
	require.NoError(t, cfg.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "webp", loaded.Output.Format)
	assert.Empty(t, loaded.OpenRouter.APIKey)
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": {"dir": "/tmp/memes"}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/memes", cfg.Output.Dir)
	assert.Equal(t, "png", cfg.Output.Format)
	assert.Equal(t, 1200, cfg.OpenRouter.MaxTokens)
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", " key ")
	t.Setenv("OPENROUTER_TIMEOUT_S", "12.5")
	t.Setenv("OPENROUTER_MAX_TOKENS", "not-a-number")
	t.Setenv("AI_BACKEND", "Ollama")
	t.Setenv("AI_RATE_PER_MIN", "30")
	t.Setenv("ALIGN_CAPTIONS_TO_CROPS", "false")
	t.Setenv("MAX_UPLOAD_FILES", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "key", cfg.OpenRouter.APIKey)
	assert.Equal(t, 12500*time.Millisecond, cfg.OpenRouter.Timeout())
	assert.Equal(t, 1200, cfg.OpenRouter.MaxTokens)
	assert.Equal(t, BackendOllama, cfg.AI.Backend)
	assert.Equal(t, 30, cfg.AI.RatePerMinute)
	assert.False(t, cfg.Pipeline.AlignCaptionsToCrops)
	assert.Equal(t, 3, cfg.Limits.MaxUploadFiles)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Output, cfg.Output)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OUTPUT_FORMAT=jpg\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("OUTPUT_FORMAT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "jpg", cfg.Output.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.AI.Backend = "gemini" }},
		{"rate", func(c *Config) { c.AI.RatePerMinute = -1 }},
		{"timeout", func(c *Config) { c.OpenRouter.TimeoutSeconds = 0 }},
		{"temperature", func(c *Config) { c.OpenRouter.Temperature = 3 }},
		{"tokens", func(c *Config) { c.OpenRouter.MaxTokens = 0 }},
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
		{"limits", func(c *Config) { c.Limits.MaxUploadFiles = -1 }},
		{"level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
