// Package gate classifies a batch of raw records with ordered quality gates:
// length, language, profanity and batch-global deduplication. The first
// failing gate decides the rejection reason.
package gate

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/record"
)

// ErrClassification marks a defect inside a gate (a recovered panic).
// Well-formed input never produces it.
var ErrClassification = errors.New("classification error")

// Config holds the gate thresholds.
type Config struct {
	MinLength         int
	MaxLength         int
	LanguageThreshold float64
	Workers           int // 0 = logical CPU count
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinLength:         20,
		MaxLength:         4000,
		LanguageThreshold: 0.08,
	}
}

// Engine evaluates batches. It holds no per-batch state and is safe for
// concurrent use.
type Engine struct {
	cfg    Config
	scorer Scorer
	deny   *DenyList
	logger *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer replaces the default StopwordScore language scorer.
func WithScorer(s Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithDenyList replaces the built-in deny-list.
func WithDenyList(d *DenyList) Option {
	return func(e *Engine) { e.deny = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a gate engine.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		scorer: StopwordScore,
		deny:   DefaultDenyList(),
		logger: logger.ComponentLogger("gate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Workers <= 0 {
		e.cfg.Workers = defaultWorkers()
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate classifies every record in batch. The result has the same length
// and order as batch. Gates 1-3 depend only on the record itself and run on a
// bounded worker pool; deduplication runs afterwards over the whole batch, in
// arrival order.
func (e *Engine) Evaluate(ctx context.Context, batch []record.Raw) ([]record.Validated, error) {
	start := time.Now()
	reasons := make([]record.FailureReason, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range batch {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			reason, err := e.classifySafely(batch[i])
			if err != nil {
				return err
			}
			reasons[i] = reason
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "gate evaluation cancelled")
	}

	// Gate 4: batch-global, first occurrence wins
	out := make([]record.Validated, len(batch))
	seen := make(map[dedupKey]struct{}, len(batch))
	for i, r := range batch {
		key := dedupKey{source: r.Source, text: r.Text}
		if _, dup := seen[key]; dup {
			out[i] = record.Reject(r, record.ReasonDuplicate)
			continue
		}
		seen[key] = struct{}{}

		if reasons[i] == "" {
			out[i] = record.Accept(r)
		} else {
			out[i] = record.Reject(r, reasons[i])
		}
	}

	e.logger.Debugw("Batch evaluated",
		logger.FieldBatchSize, len(batch),
		"workers", e.cfg.Workers,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return out, nil
}

type dedupKey struct {
	source record.Source
	text   string
}

// classifySafely runs gates 1-3 and converts a panic into a classification error.
func (e *Engine) classifySafely(r record.Raw) (reason record.FailureReason, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Mark(
				errors.Newf("gate panicked on record %s: %v", r.ID, p),
				ErrClassification,
			)
		}
	}()
	return e.classify(r), nil
}

// classify applies gates 1-3 in order and returns the first failure, or "".
func (e *Engine) classify(r record.Raw) record.FailureReason {
	n := r.TextLen()
	if n < e.cfg.MinLength {
		return record.ReasonTooShort
	}
	if n > e.cfg.MaxLength {
		return record.ReasonTooLong
	}
	if e.scorer(r.Text) < e.cfg.LanguageThreshold {
		return record.ReasonNonEnglish
	}
	if e.deny.Match(r.Text) {
		return record.ReasonProfanity
	}
	return ""
}

func defaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}
