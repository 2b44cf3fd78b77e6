package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MorganRO8/LoA-sub000/internal/common"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// SendJSON posts body as JSON to url with optional headers and returns the raw response
// body. Failures come back classified (see Classify); backend names the service in errors
// and logs.
func SendJSON(ctx context.Context, client *http.Client, backend, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	reqID := uuid.New().String()
	docID := common.DocumentIDFromContext(ctx)
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("inference.http.encode_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("inference.http.build_request_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("inference.http.request",
		"req_id", reqID,
		"document_id", docID,
		"backend", backend,
		"url", url,
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("inference.http.send_error",
			"req_id", reqID,
			"document_id", docID,
			"backend", backend,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, Classify(backend, 0, nil, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("inference.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	logger.Debug("inference.http.response",
		"req_id", reqID,
		"document_id", docID,
		"backend", backend,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, Classify(backend, resp.StatusCode, raw, fmt.Errorf("non-2xx status: %d", resp.StatusCode))
	}
	if readErr != nil {
		return raw, Classify(backend, resp.StatusCode, raw, fmt.Errorf("read body: %w", readErr))
	}
	return raw, nil
}

// Probe issues a GET against url and fails unless it answers 2xx.
func Probe(ctx context.Context, client *http.Client, backend, url string, headers map[string]string) error {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Classify(backend, 0, nil, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Classify(backend, resp.StatusCode, raw, fmt.Errorf("non-2xx status: %d", resp.StatusCode))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
