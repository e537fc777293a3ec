package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported AI backends.
const (
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// Config holds the application configuration
type Config struct {
	AI         AIConfig         `json:"ai"`
	OpenRouter OpenRouterConfig `json:"openrouter"`
	Ollama     OllamaConfig     `json:"ollama"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Output     OutputConfig     `json:"output"`
	Limits     LimitsConfig     `json:"limits"`
	Logging    LoggingConfig    `json:"logging"`
}

// AIConfig selects the vision backend
type AIConfig struct {
	Backend string `json:"backend"`
	// RatePerMinute caps outbound model calls. Zero disables the limiter.
	RatePerMinute int `json:"rate_per_minute"`
}

// OpenRouterConfig holds the hosted backend settings
type OpenRouterConfig struct {
	// APIKey is only read from the environment and never written to disk.
	APIKey         string  `json:"-"`
	Model          string  `json:"model"`
	BaseURL        string  `json:"base_url"`
	TimeoutSeconds float64 `json:"timeout_s"`
	SiteURL        string  `json:"site_url"`
	AppName        string  `json:"app_name"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
}

// Timeout returns the request timeout as a duration.
func (c OpenRouterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// OllamaConfig holds the local backend settings
type OllamaConfig struct {
	URL            string  `json:"url"`
	Model          string  `json:"model"`
	TimeoutSeconds int     `json:"timeout_s"`
	Temperature    float64 `json:"temperature"`
}

// Timeout returns the request timeout as a duration.
func (c OllamaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig holds generation settings
type PipelineConfig struct {
	AlignCaptionsToCrops bool `json:"align_captions_to_crops"`
	MaxModelDim          int  `json:"max_model_dim"`
	JPEGQuality          int  `json:"jpeg_quality"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir     string `json:"dir"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

// LimitsConfig bounds uploads
type LimitsConfig struct {
	MaxUploadBytes      int64 `json:"max_upload_bytes"`
	MaxUploadTotalBytes int64 `json:"max_upload_total_bytes"`
	MaxUploadFiles      int   `json:"max_upload_files"`
}

// LoggingConfig holds log level, format and optional rotating file output
type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Backend:       BackendOpenRouter,
			RatePerMinute: 0,
		},
		OpenRouter: OpenRouterConfig{
			Model:          "openai/gpt-4o-mini",
			BaseURL:        "https://openrouter.ai/api/v1",
			TimeoutSeconds: 45,
			Temperature:    0.1,
			MaxTokens:      1200,
		},
		Ollama: OllamaConfig{
			URL:            "http://localhost:11434",
			Model:          "minicpm-v",
			TimeoutSeconds: 300,
			Temperature:    0.1,
		},
		Pipeline: PipelineConfig{
			AlignCaptionsToCrops: true,
			MaxModelDim:          1536,
			JPEGQuality:          85,
		},
		Output: OutputConfig{
			Dir:     "./generated",
			Format:  "png",
			Quality: 90,
		},
		Limits: LimitsConfig{
			MaxUploadBytes:      10 << 20,
			MaxUploadTotalBytes: 40 << 20,
			MaxUploadFiles:      8,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the effective configuration: defaults, then the JSON file at
// path when it exists, then environment variables (including a .env file in
// the working directory).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFromFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() {
	c.AI.Backend = strings.ToLower(getEnv("AI_BACKEND", c.AI.Backend))
	c.AI.RatePerMinute = getEnvInt("AI_RATE_PER_MIN", c.AI.RatePerMinute)

	c.OpenRouter.APIKey = getEnv("OPENROUTER_API_KEY", c.OpenRouter.APIKey)
	c.OpenRouter.Model = getEnv("OPENROUTER_MODEL", c.OpenRouter.Model)
	c.OpenRouter.BaseURL = getEnv("OPENROUTER_BASE_URL", c.OpenRouter.BaseURL)
	c.OpenRouter.TimeoutSeconds = getEnvFloat("OPENROUTER_TIMEOUT_S", c.OpenRouter.TimeoutSeconds)
	c.OpenRouter.SiteURL = getEnv("OPENROUTER_SITE_URL", c.OpenRouter.SiteURL)
	c.OpenRouter.AppName = getEnv("OPENROUTER_APP_NAME", c.OpenRouter.AppName)
	c.OpenRouter.Temperature = getEnvFloat("OPENROUTER_TEMPERATURE", c.OpenRouter.Temperature)
	c.OpenRouter.MaxTokens = getEnvInt("OPENROUTER_MAX_TOKENS", c.OpenRouter.MaxTokens)

	c.Ollama.URL = getEnv("OLLAMA_URL", c.Ollama.URL)
	c.Ollama.Model = getEnv("OLLAMA_MODEL", c.Ollama.Model)

	c.Pipeline.AlignCaptionsToCrops = getEnvBool("ALIGN_CAPTIONS_TO_CROPS", c.Pipeline.AlignCaptionsToCrops)

	c.Output.Dir = getEnv("GENERATED_DIR", c.Output.Dir)
	c.Output.Format = strings.ToLower(getEnv("OUTPUT_FORMAT", c.Output.Format))

	c.Limits.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.Limits.MaxUploadBytes)))
	c.Limits.MaxUploadTotalBytes = int64(getEnvInt("MAX_UPLOAD_TOTAL_BYTES", int(c.Limits.MaxUploadTotalBytes)))
	c.Limits.MaxUploadFiles = getEnvInt("MAX_UPLOAD_FILES", c.Limits.MaxUploadFiles)

	c.Logging.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Logging.Level))
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.AI.Backend {
	case BackendOpenRouter, BackendOllama:
	default:
		return fmt.Errorf("ai.backend must be %q or %q", BackendOpenRouter, BackendOllama)
	}

	if c.AI.RatePerMinute < 0 {
		return fmt.Errorf("ai.rate_per_minute cannot be negative")
	}

	if c.OpenRouter.TimeoutSeconds <= 0 || c.Ollama.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.OpenRouter.Temperature < 0 || c.OpenRouter.Temperature > 2 {
		return fmt.Errorf("openrouter.temperature must be between 0 and 2")
	}

	if c.OpenRouter.MaxTokens < 1 {
		return fmt.Errorf("openrouter.max_tokens must be positive")
	}

	switch c.Output.Format {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be png, jpg or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Pipeline.JPEGQuality < 1 || c.Pipeline.JPEGQuality > 100 {
		return fmt.Errorf("pipeline.jpeg_quality must be between 1 and 100")
	}

	if c.Limits.MaxUploadBytes < 0 || c.Limits.MaxUploadTotalBytes < 0 || c.Limits.MaxUploadFiles < 0 {
		return fmt.Errorf("limits cannot be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "meme-maker", "config.json")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
