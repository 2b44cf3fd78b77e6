// Package app assembles the extraction pipeline from a loaded configuration.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/inference/backend"
	"github.com/MorganRO8/LoA-sub000/internal/metrics"
	"github.com/MorganRO8/LoA-sub000/internal/pipeline"
	"github.com/MorganRO8/LoA-sub000/internal/prompt"
	"github.com/MorganRO8/LoA-sub000/internal/schema"
	"github.com/MorganRO8/LoA-sub000/internal/source"
	"github.com/MorganRO8/LoA-sub000/internal/store"
	"github.com/MorganRO8/LoA-sub000/internal/validate"
)

// MetricsNamespace prefixes every exported instrument.
const MetricsNamespace = "loa"

// Options carry the process-level collaborators.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer   // nil disables metrics
	Health     pipeline.HealthReporter // nil when no admin server runs
}

// App is a fully wired pipeline plus the resources it owns.
type App struct {
	Config  *common.Config
	Schema  *schema.Schema
	Prompts prompt.Prompts
	Store   store.Store
	Source  *source.Directory
	Client  backend.Client
	Metrics *metrics.Collector
	Runner  *pipeline.Runner
	logger  *slog.Logger
}

// LoadPrompts reads the schema and instructions and renders both prompts. It touches
// neither the store nor the inference service.
func LoadPrompts(cfg *common.Config, logger *slog.Logger) (*schema.Schema, prompt.Prompts, error) {
	if cfg.Schema.Path == "" {
		return nil, prompt.Prompts{}, common.NewAppError("CONFIG_ERROR", "schema.path is required", common.ErrInvalidInput)
	}
	s, err := schema.Load(cfg.Schema.Path, logger)
	if err != nil {
		return nil, prompt.Prompts{}, err
	}
	instructions, err := cfg.ResolveInstructions()
	if err != nil {
		return nil, prompt.Prompts{}, err
	}
	ex := cfg.Extraction
	return s, prompt.Build(s, instructions, ex.TargetType, ex.ExampleSeed, ex.WithholdCheckImages), nil
}

// OpenStore opens the configured result store for s.
func OpenStore(ctx context.Context, cfg *common.Config, s *schema.Schema, logger *slog.Logger) (store.Store, error) {
	return store.Open(ctx, cfg.Store, s.Header(), logger)
}

// Build wires every component. A schema error aborts before any store or network
// resource is touched.
func Build(ctx context.Context, cfg *common.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, prompts, err := LoadPrompts(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := backend.New(cfg.Inference, logger)
	if err != nil {
		return nil, err
	}

	st, err := OpenStore(ctx, cfg, s, logger)
	if err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if opts.Registerer != nil {
		collector = metrics.NewCollector(MetricsNamespace, opts.Registerer)
	}

	ex := cfg.Extraction
	extractor := pipeline.NewExtractor(client, st, s, prompts, pipeline.Config{
		Model:               cfg.Inference.Model,
		MaxRetries:          ex.MaxRetries,
		MaxTokens:           ex.MaxTokens,
		SkipCheck:           ex.SkipCheck,
		WithholdCheckImages: ex.WithholdCheckImages,
		Sampling: pipeline.Sampling{
			Temperature:       ex.Temperature,
			TemperatureStep:   ex.TemperatureStep,
			MaxTemperature:    ex.MaxTemperature,
			RepeatPenalty:     ex.RepeatPenalty,
			RepeatPenaltyStep: ex.RepeatPenaltyStep,
			MaxRepeatPenalty:  ex.MaxRepeatPenalty,
			TopP:              ex.TopP,
		},
	},
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(collector),
		pipeline.WithRestarter(backend.Restarter(cfg.Inference, client, logger)),
		pipeline.WithHealth(opts.Health),
		pipeline.WithValidator(validate.Compile(s, validate.Options{StrictTypes: ex.StrictTypes, Logger: logger})),
	)

	runner := pipeline.NewRunner(extractor,
		pipeline.WithWorkers(ex.Workers, backend.Factory(cfg.Inference, logger)),
		pipeline.WithRunnerLogger(logger),
	)

	logger.Info("app.ready",
		"schema", cfg.Schema.Path,
		"columns", s.NumColumns(),
		"backend", cfg.Inference.Backend,
		"model", cfg.Inference.Model,
		"store", cfg.Store.Driver,
		"workers", ex.Workers,
	)
	return &App{
		Config:  cfg,
		Schema:  s,
		Prompts: prompts,
		Store:   st,
		Source:  source.NewDirectory(cfg.Source.Dir, cfg.Source.IncludeHidden, logger),
		Client:  client,
		Metrics: collector,
		Runner:  runner,
		logger:  logger,
	}, nil
}

// Run performs one pass over the source directory.
func (a *App) Run(ctx context.Context) (pipeline.Stats, error) {
	ctx = common.WithRunID(ctx, uuid.NewString())
	return a.Runner.Run(ctx, a.Source)
}

// WaitForBackend probes the inference service until it answers or timeout elapses.
func (a *App) WaitForBackend(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		err := a.Client.Ping(ctx)
		if err == nil {
			return nil
		}
		a.logger.Warn("app.backend.unreachable", "error", err)
		select {
		case <-ctx.Done():
			return common.NewAppError("BACKEND_UNAVAILABLE", "inference service did not become ready", common.ErrUnavailable)
		case <-ticker.C:
		}
	}
}

func (a *App) Close() error {
	return a.Store.Close()
}
