// Package inference defines the completion-service contract the extraction pipeline
// depends on, plus the HTTP plumbing shared by the concrete backends.
package inference

import (
	"context"
	"time"
)

// Image is one optional image sent alongside a prompt.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Options are the sampling settings for one call.
type Options struct {
	Temperature   float64
	RepeatPenalty float64
	TopP          float64
	MaxTokens     int
}

type Request struct {
	Model   string
	Prompt  string
	Options Options
	Images  []Image
}

type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Elapsed          time.Duration
}

// Client is a synchronous completion call. Implementations return *TransportError or
// *OverloadError when the service cannot answer.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Pinger reports whether the service is reachable and ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Restarter brings an overloaded service back before the next attempt.
type Restarter interface {
	Restart(ctx context.Context) error
}
