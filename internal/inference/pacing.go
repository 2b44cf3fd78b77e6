package inference

import (
	"context"

	"golang.org/x/time/rate"
)

type pacedClient struct {
	next    Client
	limiter *rate.Limiter
}

// WithRateLimit spaces calls to next to at most rps per second. A non-positive rps returns
// next unchanged.
func WithRateLimit(next Client, rps float64) Client {
	if rps <= 0 {
		return next
	}
	return &pacedClient{next: next, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (p *pacedClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return p.next.Generate(ctx, req)
}

// Ping forwards to the wrapped client when it supports it.
func (p *pacedClient) Ping(ctx context.Context) error {
	if pinger, ok := p.next.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
