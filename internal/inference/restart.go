package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// CommandRestarter restarts the inference service by running an external command, then
// waits until the service answers Ping again.
type CommandRestarter struct {
	Command      []string
	Pinger       Pinger
	Timeout      time.Duration // readiness wait after the command returns
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Restart runs the command and blocks until the service is ready or the timeout expires.
func (r *CommandRestarter) Restart(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(r.Command) == 0 {
		return errors.New("no restart command configured")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	interval := r.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	start := time.Now()
	logger.Warn("inference.restart.start", "command", r.Command)
	out, err := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...).CombinedOutput()
	if err != nil {
		logger.Error("inference.restart.command_failed", "error", err, "output", Snippet(string(out)))
		return fmt.Errorf("restart command: %w", err)
	}
	if r.Pinger == nil {
		logger.Info("inference.restart.done", "elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pingErr := r.Pinger.Ping(readyCtx)
		if pingErr == nil {
			logger.Info("inference.restart.done", "elapsed_ms", time.Since(start).Milliseconds())
			return nil
		}
		select {
		case <-readyCtx.Done():
			logger.Error("inference.restart.not_ready", "error", pingErr, "elapsed_ms", time.Since(start).Milliseconds())
			return fmt.Errorf("inference service not ready after restart: %w", pingErr)
		case <-ticker.C:
		}
	}
}
