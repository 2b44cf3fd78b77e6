package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name     string
		status   int
		body     string
		err      error
		overload bool
	}{
		{"service unavailable", 503, "", errors.New("non-2xx"), true},
		{"oom body", 500, `{"error":"llama runner process has terminated: CUDA error: out of memory"}`, errors.New("non-2xx"), true},
		{"plain 500", 500, `{"error":"template error"}`, errors.New("non-2xx"), false},
		{"bad request", 400, "out of memory", errors.New("non-2xx"), false},
		{"connection refused", 0, "", fmt.Errorf("post: %w", refused), true},
		{"timeout", 0, "", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("ollama", tt.status, []byte(tt.body), tt.err)
			assert.Equal(t, tt.overload, IsOverload(err))
			assert.True(t, IsTransport(err))
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.StatusCode)
		})
	}
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Backend: "openai", StatusCode: 429, Snippet: "slow down", Err: errors.New("non-2xx status: 429")}
	assert.Equal(t, "openai transport error (status 429): non-2xx status: 429: slow down", err.Error())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "", Snippet("  \n"))
	assert.Equal(t, "a b c", Snippet("a\n b\tc"))
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(Snippet(string(long))), 163)
}

type countingClient struct{ calls int }

func (c *countingClient) Generate(context.Context, Request) (Response, error) {
	c.calls++
	return Response{Text: "ok"}, nil
}

func TestWithRateLimit(t *testing.T) {
	inner := &countingClient{}
	assert.Same(t, inner, WithRateLimit(inner, 0))

	paced := WithRateLimit(inner, 20)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := paced.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := WithRateLimit(&countingClient{}, 0.001)
	_, _ = slow.Generate(context.Background(), Request{})
	_, err := slow.Generate(ctx, Request{})
	assert.Error(t, err)
}

type flakyPinger struct{ failures int }

func (p *flakyPinger) Ping(context.Context) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("not ready")
	}
	return nil
}

func TestCommandRestarter(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	pinger := &flakyPinger{failures: 2}
	r := &CommandRestarter{
		Command:      []string{"/bin/sh", "-c", "exit 0"},
		Pinger:       pinger,
		Timeout:      2 * time.Second,
		PollInterval: 5 * time.Millisecond,
	}
	require.NoError(t, r.Restart(context.Background()))
	assert.Zero(t, pinger.failures)

	r.Command = []string{"/bin/sh", "-c", "exit 3"}
	assert.Error(t, r.Restart(context.Background()))

	r.Command = []string{"/bin/sh", "-c", "exit 0"}
	r.Pinger = &flakyPinger{failures: 1 << 30}
	r.Timeout = 30 * time.Millisecond
	assert.ErrorContains(t, r.Restart(context.Background()), "not ready")

	assert.Error(t, (&CommandRestarter{}).Restart(context.Background()))
}
