// Package openai talks to any OpenAI-compatible /chat/completions endpoint.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MorganRO8/LoA-sub000/internal/inference"
)

const backendName = "openai"

// Config for the OpenAI client.
type Config struct {
	APIKey  string // if empty, falls back to env OPENAI_API_KEY
	BaseURL string // default https://api.openai.com/v1
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Generate implements inference.Client with a single user message. Images are sent as
// data-URL content parts.
func (c *Client) Generate(ctx context.Context, req inference.Request) (inference.Response, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	var content any = req.Prompt
	if len(req.Images) > 0 {
		parts := []map[string]any{{"type": "text", "text": req.Prompt}}
		for _, img := range req.Images {
			mt := img.MIMEType
			if mt == "" {
				mt = "image/png"
			}
			parts = append(parts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
		content = parts
	}

	body := map[string]any{
		"model":       model,
		"temperature": req.Options.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	if req.Options.MaxTokens > 0 {
		body["max_tokens"] = req.Options.MaxTokens
	}
	if req.Options.TopP > 0 {
		body["top_p"] = req.Options.TopP
	}
	if fp := frequencyPenalty(req.Options.RepeatPenalty); fp > 0 {
		body["frequency_penalty"] = fp
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := inference.SendJSON(ctx, c.http, backendName, endpoint, body, c.headers(), c.logger)
	if err != nil {
		return inference.Response{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return inference.Response{}, inference.Classify(backendName, http.StatusOK, raw, fmt.Errorf("decode response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return inference.Response{}, inference.Classify(backendName, http.StatusOK, raw, fmt.Errorf("no choices in response"))
	}

	resp := inference.Response{
		Text:             cc.Choices[0].Message.Content,
		Model:            cc.Model,
		PromptTokens:     cc.Usage.PromptTokens,
		CompletionTokens: cc.Usage.CompletionTokens,
		Elapsed:          time.Since(start),
	}
	c.logger.Debug("inference.generate.ok",
		"backend", backendName,
		"model", resp.Model,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"elapsed_ms", resp.Elapsed.Milliseconds(),
	)
	return resp, nil
}

// Ping lists models.
func (c *Client) Ping(ctx context.Context) error {
	return inference.Probe(ctx, c.http, backendName, strings.TrimRight(c.cfg.BaseURL, "/")+"/models", c.headers())
}

func (c *Client) headers() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

// frequencyPenalty maps an Ollama-style repeat penalty (1.0 = off) onto the OpenAI
// frequency_penalty range [0, 2].
func frequencyPenalty(repeat float64) float64 {
	fp := repeat - 1
	if fp < 0 {
		return 0
	}
	if fp > 2 {
		return 2
	}
	return fp
}
