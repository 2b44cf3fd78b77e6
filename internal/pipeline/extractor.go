// Package pipeline drives one document through pre-check, extraction, parsing,
// validation and persistence, and runs that cycle over a whole document source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/inference"
	"github.com/MorganRO8/LoA-sub000/internal/metrics"
	"github.com/MorganRO8/LoA-sub000/internal/prompt"
	"github.com/MorganRO8/LoA-sub000/internal/response"
	"github.com/MorganRO8/LoA-sub000/internal/schema"
	"github.com/MorganRO8/LoA-sub000/internal/source"
	"github.com/MorganRO8/LoA-sub000/internal/store"
	"github.com/MorganRO8/LoA-sub000/internal/validate"
)

// Sampling is the base sampling setup and how it escalates per retry.
type Sampling struct {
	Temperature       float64
	TemperatureStep   float64
	MaxTemperature    float64
	RepeatPenalty     float64
	RepeatPenaltyStep float64
	MaxRepeatPenalty  float64
	TopP              float64
}

// Options returns the extraction sampling options for the given retry. Both knobs grow
// monotonically with retry and are capped at their maximum.
func (s Sampling) Options(retry int, maxTokens int) inference.Options {
	return inference.Options{
		Temperature:   escalate(s.Temperature, s.TemperatureStep, s.MaxTemperature, retry),
		RepeatPenalty: escalate(s.RepeatPenalty, s.RepeatPenaltyStep, s.MaxRepeatPenalty, retry),
		TopP:          s.TopP,
		MaxTokens:     maxTokens,
	}
}

func escalate(base, step, max float64, retry int) float64 {
	v := math.Round((base+step*float64(retry))*1000) / 1000
	if max > 0 && v > max {
		v = max
	}
	return v
}

// Config is the per-run extraction policy.
type Config struct {
	Model               string
	MaxRetries          int // total extraction attempts before the failed sentinel row
	MaxTokens           int
	SkipCheck           bool
	WithholdCheckImages bool
	Sampling            Sampling
}

// HealthReporter is told when the inference service is being restarted.
type HealthReporter interface {
	SetServing(serving bool)
}

// Attempt is the ephemeral state of one document's extraction.
type Attempt struct {
	DocumentID string
	RetryCount int
	Check      constants.CheckResult
	State      constants.AttemptState
	LastErr    error
}

// Outcome is what happened to one document.
type Outcome struct {
	DocumentID string
	State      constants.AttemptState
	Check      constants.CheckResult
	Attempts   int   // extraction calls issued
	Rows       int   // rows persisted
	LastErr    error // last retry reason, for FAILED documents
}

// Extractor processes single documents. It is safe for use by one goroutine at a time;
// parallel runners give each worker its own copy via WithClient.
type Extractor struct {
	client    inference.Client
	restarter inference.Restarter
	store     store.Store
	schema    *schema.Schema
	prompts   prompt.Prompts
	validator *validate.Validator
	cfg       Config
	metrics   *metrics.Collector
	health    HealthReporter
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithRestarter enables out-of-band restarts on overload errors.
func WithRestarter(r inference.Restarter) Option {
	return func(e *Extractor) { e.restarter = r }
}

func WithHealth(h HealthReporter) Option {
	return func(e *Extractor) { e.health = h }
}

// WithValidator replaces the default (lenient) validator.
func WithValidator(v *validate.Validator) Option {
	return func(e *Extractor) {
		if v != nil {
			e.validator = v
		}
	}
}

func NewExtractor(client inference.Client, st store.Store, s *schema.Schema, prompts prompt.Prompts, cfg Config, opts ...Option) *Extractor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	e := &Extractor{
		client:  client,
		store:   st,
		schema:  s,
		prompts: prompts,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.validator == nil {
		e.validator = validate.Compile(s, validate.Options{Logger: e.logger})
	}
	return e
}

// WithClient returns a copy of e that calls c instead.
func (e *Extractor) WithClient(c inference.Client) *Extractor {
	cp := *e
	cp.client = c
	return &cp
}

// Process runs the state machine for doc and performs exactly one append on every
// terminal transition. A cancelled context stops the document without writing anything.
func (e *Extractor) Process(ctx context.Context, doc source.Document) (Outcome, error) {
	ctx = common.WithDocumentID(ctx, doc.ID)
	start := time.Now()
	a := &Attempt{DocumentID: doc.ID, Check: constants.CheckUnknown, State: constants.StatePending}
	e.metrics.InFlight(1)
	defer e.metrics.InFlight(-1)

	if !e.cfg.SkipCheck {
		e.transition(a, constants.StateChecking)
		a.Check = e.check(ctx, doc)
		if err := ctx.Err(); err != nil {
			return e.outcome(a), err
		}
		if a.Check == constants.CheckNo {
			e.transition(a, constants.StateSkipped)
			n, err := e.persist(ctx, a, e.fillRow(doc.ID, constants.NullToken))
			out := e.outcome(a)
			out.Rows = n
			e.logger.Info("pipeline.document.skipped", "document_id", doc.ID, "elapsed_ms", time.Since(start).Milliseconds())
			return out, err
		}
	}

	attempts := 0
	for a.RetryCount = 0; a.RetryCount < e.cfg.MaxRetries; a.RetryCount++ {
		if a.RetryCount > 0 {
			e.transition(a, constants.StateRetrying)
		}
		e.transition(a, constants.StateExtracting)
		attempts++

		rows, err := e.extractOnce(ctx, a, doc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				out := e.outcome(a)
				out.Attempts = attempts
				return out, ctxErr
			}
			a.LastErr = err
			e.logger.Warn("pipeline.attempt.retry",
				"document_id", doc.ID,
				"retry", a.RetryCount,
				"max_retries", e.cfg.MaxRetries,
				"reason", err,
			)
			continue
		}

		e.transition(a, constants.StateSucceeded)
		n, perr := e.persist(ctx, a, rows)
		out := e.outcome(a)
		out.Attempts = attempts
		out.Rows = n
		e.logger.Info("pipeline.document.succeeded",
			"document_id", doc.ID,
			"rows", n,
			"attempts", attempts,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, perr
	}

	e.transition(a, constants.StateFailed)
	n, err := e.persist(ctx, a, e.fillRow(doc.ID, constants.FailedToken))
	out := e.outcome(a)
	out.Attempts = attempts
	out.Rows = n
	e.logger.Warn("pipeline.document.failed",
		"document_id", doc.ID,
		"attempts", attempts,
		"last_error", a.LastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, err
}

// extractOnce issues one extraction call and returns the validated rows with the
// document id appended, or the retry reason.
func (e *Extractor) extractOnce(ctx context.Context, a *Attempt, doc source.Document) ([][]string, error) {
	req := inference.Request{
		Model:   e.cfg.Model,
		Prompt:  prompt.WithDocument(e.prompts.Extraction, doc.Text),
		Options: e.cfg.Sampling.Options(a.RetryCount, e.cfg.MaxTokens),
		Images:  doc.Images,
	}
	callStart := time.Now()
	resp, err := e.client.Generate(ctx, req)
	e.metrics.Inference("extract", err, time.Since(callStart))
	if err != nil {
		if inference.IsOverload(err) {
			e.metrics.Attempt("overload")
			e.restart(ctx, doc.ID)
		} else {
			e.metrics.Attempt("transport_error")
		}
		return nil, err
	}

	parsed := response.Parse(resp.Text, e.schema.NumColumns())
	e.metrics.RowsRejected("wrong_arity", parsed.WrongArity)
	e.metrics.RowsRejected("example_echo", parsed.Examples)
	if len(parsed.Rows) == 0 {
		e.metrics.Attempt("empty_parse")
		e.logger.Debug("pipeline.parse.empty",
			"document_id", doc.ID,
			"retry", a.RetryCount,
			"wrong_arity", parsed.WrongArity,
			"response", inference.Snippet(resp.Text),
		)
		return nil, response.ErrEmptyParse
	}

	e.transition(a, constants.StateValidating)
	res := e.validator.Validate(parsed.Rows, e.prompts.Examples)
	e.metrics.RowsRejected("cell_error", len(res.Rejected))
	e.metrics.RowsRejected("duplicate_key", res.Duplicates)
	e.metrics.RowsRejected("header_echo", res.Headers)
	e.metrics.RowsRejected("example_leak", res.Examples)
	if len(res.Rows) == 0 {
		e.metrics.Attempt("empty_validation")
		return nil, validate.ErrEmptyValidation
	}

	e.metrics.Attempt("rows")
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = append(append(make([]string, 0, len(r)+1), r...), doc.ID)
	}
	return rows, nil
}

// check asks the cheap yes/no question. Transport failures leave the answer unknown and
// extraction proceeds.
func (e *Extractor) check(ctx context.Context, doc source.Document) constants.CheckResult {
	req := inference.Request{
		Model:   e.cfg.Model,
		Prompt:  prompt.WithDocument(e.prompts.Check, doc.Text),
		Options: inference.Options{Temperature: 0, MaxTokens: 1},
	}
	if !e.cfg.WithholdCheckImages {
		req.Images = doc.Images
	}
	callStart := time.Now()
	resp, err := e.client.Generate(ctx, req)
	e.metrics.Inference("check", err, time.Since(callStart))
	if err != nil {
		e.logger.Warn("pipeline.check.error", "document_id", doc.ID, "error", err)
		if inference.IsOverload(err) {
			e.restart(ctx, doc.ID)
		}
		return constants.CheckUnknown
	}
	result := ParseCheckAnswer(resp.Text)
	e.logger.Debug("pipeline.check.answer", "document_id", doc.ID, "answer", inference.Snippet(resp.Text), "result", result)
	return result
}

// ParseCheckAnswer maps the model's answer onto yes or no. Anything that does not start
// with "yes" counts as no.
func ParseCheckAnswer(text string) constants.CheckResult {
	t := strings.TrimLeftFunc(strings.ToLower(strings.TrimSpace(text)), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	if strings.HasPrefix(t, "yes") {
		return constants.CheckYes
	}
	return constants.CheckNo
}

func (e *Extractor) restart(ctx context.Context, docID string) {
	if e.restarter == nil {
		return
	}
	if e.health != nil {
		e.health.SetServing(false)
	}
	err := e.restarter.Restart(ctx)
	e.metrics.Restart(err)
	if err != nil {
		e.logger.Error("pipeline.restart.failed", "document_id", docID, "error", err)
		return
	}
	if e.health != nil {
		e.health.SetServing(true)
	}
	e.logger.Info("pipeline.restart.ok", "document_id", docID)
}

func (e *Extractor) persist(ctx context.Context, a *Attempt, rows [][]string) (int, error) {
	if err := e.store.Append(ctx, rows); err != nil {
		a.LastErr = err
		e.logger.Error("pipeline.persist.failed", "document_id", a.DocumentID, "state", a.State, "error", err)
		var pe *store.PersistenceError
		if !errors.As(err, &pe) {
			err = &store.PersistenceError{DocumentID: a.DocumentID, Err: err}
		}
		return 0, err
	}
	e.metrics.RowsPersisted(len(rows))
	return len(rows), nil
}

func (e *Extractor) fillRow(docID, token string) [][]string {
	row := make([]string, e.schema.NumColumns()+1)
	for i := 0; i < e.schema.NumColumns(); i++ {
		row[i] = token
	}
	row[len(row)-1] = docID
	return [][]string{row}
}

func (e *Extractor) transition(a *Attempt, next constants.AttemptState) {
	if a.State.Terminal() {
		panic(fmt.Sprintf("pipeline: transition from terminal state %s to %s", a.State, next))
	}
	e.logger.Debug("pipeline.state", "document_id", a.DocumentID, "from", a.State, "to", next, "retry", a.RetryCount)
	a.State = next
}

func (e *Extractor) outcome(a *Attempt) Outcome {
	return Outcome{DocumentID: a.DocumentID, State: a.State, Check: a.Check, LastErr: a.LastErr}
}
