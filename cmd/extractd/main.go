package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/MorganRO8/LoA-sub000/internal/app"
	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("LOA_CONFIG"), "configuration file (TOML)")
	once := flag.Bool("once", false, "process the source directory once and exit")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, logger); err != nil {
		logger.Error("extractd stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("extractd stopped")
}

func run(ctx context.Context, cfg *common.Config, once bool, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	admin, err := server.NewAdmin(cfg.Server.GRPCAddr, logger)
	if err != nil {
		return common.WrapError(err, "listen grpc")
	}
	metricsSrv, err := server.NewMetrics(cfg.Server.MetricsAddr, reg, logger)
	if err != nil {
		admin.Stop()
		return common.WrapError(err, "listen metrics")
	}

	a, err := app.Build(ctx, cfg, app.Options{Logger: logger, Registerer: reg, Health: admin})
	if err != nil {
		admin.Stop()
		_ = metricsSrv.Close()
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return admin.Serve(gctx) })
	g.Go(func() error { return metricsSrv.Serve(gctx) })
	g.Go(func() error {
		err := scanLoop(gctx, a, once, logger)
		if once {
			// Stop the listeners once the single pass is over.
			return errStopped
		}
		return err
	})

	err = g.Wait()
	if errors.Is(err, errStopped) || ctx.Err() != nil {
		return nil
	}
	return err
}

var errStopped = errors.New("single pass complete")

func scanLoop(ctx context.Context, a *app.App, once bool, logger *slog.Logger) error {
	timeout := time.Duration(a.Config.Inference.RestartTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if err := a.WaitForBackend(ctx, timeout); err != nil {
		logger.Warn("extractd.backend.not_ready", "error", err)
	}

	interval := time.Duration(a.Config.Server.RescanIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var changes <-chan struct{}
	if a.Config.Server.WatchSource && !once {
		ch, err := a.Source.Watch(ctx, 2*time.Second)
		if err != nil {
			logger.Warn("extractd.watch.unavailable", "dir", a.Config.Source.Dir, "error", err)
		} else {
			changes = ch
		}
	}

	for {
		stats, err := a.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("extractd.pass.failed", "error", err)
		} else {
			logger.Info("extractd.pass.done",
				"listed", stats.Listed,
				"resumed", stats.Resumed,
				"processed", stats.Processed(),
				"failed", stats.Failed,
			)
		}
		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		}
	}
}
