package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/inference"
	"github.com/MorganRO8/LoA-sub000/internal/source"
)

// Source enumerates and loads documents.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, id string) (source.Document, error)
}

// ClientFactory builds one inference client per worker.
type ClientFactory func() (inference.Client, error)

// Stats summarizes one run.
type Stats struct {
	Listed        int
	Resumed       int // already in the result store
	Duplicates    int // listed more than once
	Succeeded     int
	NoData        int
	Failed        int
	LoadErrors    int
	PersistErrors int
}

// Processed is the number of documents that reached a terminal state in this run.
func (s Stats) Processed() int { return s.Succeeded + s.NoData + s.Failed }

func (s *Stats) add(o Stats) {
	s.Succeeded += o.Succeeded
	s.NoData += o.NoData
	s.Failed += o.Failed
	s.LoadErrors += o.LoadErrors
	s.PersistErrors += o.PersistErrors
}

// Runner walks a source and feeds unprocessed documents to an Extractor.
type Runner struct {
	extractor *Extractor
	workers   int
	factory   ClientFactory
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers processes up to n documents concurrently. Each worker gets its own client
// from factory. Output order across documents is not preserved.
func WithWorkers(n int, factory ClientFactory) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
		r.factory = factory
	}
}

func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(ex *Extractor, opts ...RunnerOption) *Runner {
	r := &Runner{extractor: ex, workers: 1, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes every listed document that has no rows in the store yet. It stops early
// only when ctx is cancelled or the source cannot be listed; per-document failures are
// counted and logged.
func (r *Runner) Run(ctx context.Context, src Source) (Stats, error) {
	start := time.Now()
	var stats Stats

	ids, err := src.List(ctx)
	if err != nil {
		return stats, common.NewAppError("SOURCE_ERROR", "list documents", err)
	}
	stats.Listed = len(ids)

	processed, err := r.extractor.store.Processed(ctx)
	if err != nil {
		return stats, err
	}

	pending := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		switch {
		case processed[id]:
			stats.Resumed++
			r.extractor.metrics.Document("resumed")
		case seen[id]:
			stats.Duplicates++
		default:
			seen[id] = true
			pending = append(pending, id)
		}
	}
	r.logger.Info("pipeline.run.start",
		"run_id", common.RunIDFromContext(ctx),
		"listed", stats.Listed,
		"resumed", stats.Resumed,
		"pending", len(pending),
		"workers", r.workers,
	)

	if r.workers <= 1 || r.factory == nil || len(pending) <= 1 {
		err = r.sequential(ctx, src, pending, &stats)
	} else {
		err = r.parallel(ctx, src, pending, &stats)
	}

	r.logger.Info("pipeline.run.done",
		"run_id", common.RunIDFromContext(ctx),
		"succeeded", stats.Succeeded,
		"no_data", stats.NoData,
		"failed", stats.Failed,
		"load_errors", stats.LoadErrors,
		"persist_errors", stats.PersistErrors,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats, err
}

func (r *Runner) sequential(ctx context.Context, src Source, ids []string, stats *Stats) error {
	for _, id := range ids {
		var s Stats
		if err := r.processOne(ctx, r.extractor, src, id, &s); err != nil {
			stats.add(s)
			return err
		}
		stats.add(s)
	}
	return nil
}

func (r *Runner) parallel(ctx context.Context, src Source, ids []string, stats *Stats) error {
	workers := r.workers
	if workers > len(ids) {
		workers = len(ids)
	}
	extractors := make([]*Extractor, workers)
	for i := range extractors {
		client, err := r.factory()
		if err != nil {
			return common.WrapError(err, "build inference client")
		}
		extractors[i] = r.extractor.WithClient(client)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for _, ex := range extractors {
		g.Go(func() error {
			for id := range jobs {
				var s Stats
				err := r.processOne(gctx, ex, src, id, &s)
				mu.Lock()
				stats.add(s)
				mu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// processOne returns an error only when ctx is done.
func (r *Runner) processOne(ctx context.Context, ex *Extractor, src Source, id string, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := src.Load(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.LoadErrors++
		ex.metrics.Document("load_error")
		r.logger.Warn("pipeline.document.load_failed", "document_id", id, "error", err)
		return nil
	}

	out, err := ex.Process(ctx, doc)
	if err != nil {
		if errors.Is(err, common.ErrPersistence) {
			stats.PersistErrors++
			ex.metrics.Document("persist_error")
			return nil
		}
		return err
	}
	switch out.State {
	case constants.StateSucceeded:
		stats.Succeeded++
		ex.metrics.Document("succeeded")
	case constants.StateSkipped:
		stats.NoData++
		ex.metrics.Document("no_data")
	case constants.StateFailed:
		stats.Failed++
		ex.metrics.Document("failed")
	}
	return nil
}
