// Package ollama talks to an Ollama server's /api/generate endpoint.
package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MorganRO8/LoA-sub000/internal/inference"
)

const backendName = "ollama"

// Config for the Ollama client.
type Config struct {
	BaseURL string        // default http://localhost:11434
	Model   string        // used when a request does not name one
	Timeout time.Duration // per-call timeout; local models can be slow on long documents
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
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

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Images  []string       `json:"images,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Generate implements inference.Client.
func (c *Client) Generate(ctx context.Context, req inference.Request) (inference.Response, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body := generateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: options(req.Options),
	}
	for _, img := range req.Images {
		body.Images = append(body.Images, base64.StdEncoding.EncodeToString(img.Data))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	raw, err := inference.SendJSON(ctx, c.http, backendName, endpoint, body, nil, c.logger)
	if err != nil {
		return inference.Response{}, err
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return inference.Response{}, inference.Classify(backendName, http.StatusOK, raw, fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return inference.Response{}, inference.Classify(backendName, http.StatusInternalServerError, []byte(out.Error), fmt.Errorf("server error"))
	}

	resp := inference.Response{
		Text:             out.Response,
		Model:            out.Model,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
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

// Ping lists local models; any 2xx means the server is up.
func (c *Client) Ping(ctx context.Context) error {
	return inference.Probe(ctx, c.http, backendName, strings.TrimRight(c.cfg.BaseURL, "/")+"/api/tags", nil)
}

func options(o inference.Options) map[string]any {
	m := map[string]any{"temperature": o.Temperature}
	if o.RepeatPenalty > 0 {
		m["repeat_penalty"] = o.RepeatPenalty
	}
	if o.TopP > 0 {
		m["top_p"] = o.TopP
	}
	if o.MaxTokens > 0 {
		m["num_predict"] = o.MaxTokens
	}
	return m
}
