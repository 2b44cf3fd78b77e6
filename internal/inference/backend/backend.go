// Package backend builds the configured inference client.
package backend

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/inference"
	"github.com/MorganRO8/LoA-sub000/internal/inference/ollama"
	"github.com/MorganRO8/LoA-sub000/internal/inference/openai"
)

// Client is what the pipeline needs from a backend: completions plus a readiness probe.
type Client interface {
	inference.Client
	inference.Pinger
}

// New returns a fresh client for cfg. Each call yields an independent HTTP session, so
// parallel workers can each hold their own.
func New(cfg common.InferenceConfig, logger *slog.Logger) (Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	var c Client
	switch cfg.Backend {
	case common.BackendOllama:
		c = ollama.NewClient(ollama.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: timeout}, logger)
	case common.BackendOpenAI:
		c = openai.NewClient(openai.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, APIKey: cfg.APIKey, Timeout: timeout}, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown inference backend %q", cfg.Backend), common.ErrInvalidInput)
	}
	if cfg.RequestsPerSecond > 0 {
		return inference.WithRateLimit(c, cfg.RequestsPerSecond).(Client), nil
	}
	return c, nil
}

// Factory returns a constructor suitable for per-worker clients.
func Factory(cfg common.InferenceConfig, logger *slog.Logger) func() (inference.Client, error) {
	return func() (inference.Client, error) {
		return New(cfg, logger)
	}
}

// Restarter returns the configured restarter, or nil when no restart command is set.
func Restarter(cfg common.InferenceConfig, pinger inference.Pinger, logger *slog.Logger) inference.Restarter {
	if len(cfg.RestartCommand) == 0 {
		return nil
	}
	return &inference.CommandRestarter{
		Command: cfg.RestartCommand,
		Pinger:  pinger,
		Timeout: time.Duration(cfg.RestartTimeoutSeconds) * time.Second,
		Logger:  logger,
	}
}
