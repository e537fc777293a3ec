package main

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/menta2k/meme-maker/internal/config"
	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/ollama"
	"github.com/menta2k/meme-maker/pkg/openrouter"
)

// newGenerator builds the configured vision backend. A nil generator means
// no backend is available and every request runs on local fallbacks.
func newGenerator(cfg *config.Config, logger *slog.Logger) (client.Generator, error) {
	var limiter *rate.Limiter
	if cfg.AI.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.AI.RatePerMinute)), 1)
	}

	switch cfg.AI.Backend {
	case config.BackendOpenRouter:
		if cfg.OpenRouter.APIKey == "" {
			logger.Warn("OPENROUTER_API_KEY is not set, running without a vision backend")
			return nil, nil
		}
		return openrouter.New(openrouter.Options{
			APIKey:      cfg.OpenRouter.APIKey,
			BaseURL:     cfg.OpenRouter.BaseURL,
			Model:       cfg.OpenRouter.Model,
			Temperature: cfg.OpenRouter.Temperature,
			MaxTokens:   cfg.OpenRouter.MaxTokens,
			SiteURL:     cfg.OpenRouter.SiteURL,
			AppName:     cfg.OpenRouter.AppName,
			Timeout:     cfg.OpenRouter.Timeout(),
			Limiter:     limiter,
			Logger:      logger.With("backend", config.BackendOpenRouter),
		}), nil
	case config.BackendOllama:
		c, err := ollama.NewClient(ollama.Options{
			URL:         cfg.Ollama.URL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Ollama.Temperature,
			Timeout:     cfg.Ollama.Timeout(),
			Limiter:     limiter,
			Logger:      logger.With("backend", config.BackendOllama),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use %q or %q)", cfg.AI.Backend, config.BackendOpenRouter, config.BackendOllama)
	}
}
