// Package pipeline drives a batch through fetch, gate, write and record,
// checkpointing each stage so an interrupted run resumes where it stopped.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/lineage"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/record"
	"github.com/teranos/curate/source"
	"github.com/teranos/curate/tier"
)

// Evaluator runs the quality gates over a batch.
type Evaluator interface {
	Evaluate(ctx context.Context, batch []record.Raw) ([]record.Validated, error)
}

// Appender appends lineage entries to the manifest.
type Appender interface {
	Append(ctx context.Context, entry lineage.Entry) (bool, error)
	Has(runID string) bool
}

// Config controls batch sizing and retries.
type Config struct {
	MaxBatch    int
	MaxWait     time.Duration
	FetchRetry  Backoff
	AppendRetry Backoff
}

// DefaultConfig matches the am defaults.
func DefaultConfig() Config {
	return Config{
		MaxBatch:    1500,
		MaxWait:     30 * time.Second,
		FetchRetry:  Backoff{Attempts: 3, Initial: 200 * time.Millisecond, Max: 5 * time.Second},
		AppendRetry: Backoff{Attempts: 5, Initial: 100 * time.Millisecond, Max: 5 * time.Second},
	}
}

// Orchestrator executes runs one at a time.
type Orchestrator struct {
	source   source.Source
	writer   *tier.Writer
	recorder Appender
	store    *Store
	cfg      Config
	logger   *zap.SugaredLogger
	now      func() time.Time

	// mu serialises runs.
	mu sync.Mutex

	gatesMu sync.RWMutex
	gates   Evaluator
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for run ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator.
func New(src source.Source, gates Evaluator, writer *tier.Writer, recorder Appender, store *Store, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:   src,
		gates:    gates,
		writer:   writer,
		recorder: recorder,
		store:    store,
		cfg:      cfg,
		logger:   logger.ComponentLogger("pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetGates swaps the gate evaluator. A run already in GATING keeps the one
// it started with.
func (o *Orchestrator) SetGates(gates Evaluator) {
	o.gatesMu.Lock()
	defer o.gatesMu.Unlock()
	o.gates = gates
}

func (o *Orchestrator) evaluator() Evaluator {
	o.gatesMu.RLock()
	defer o.gatesMu.RUnlock()
	return o.gates
}

// Store returns the run store.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// RunOnce executes one run. An unfinished run left by a previous process is
// resumed first and returned instead of fetching a new batch. An empty fetch
// returns a COMPLETE run that is not persisted.
func (o *Orchestrator) RunOnce(ctx context.Context) (*Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if run, err := o.resumeUnfinished(ctx); run != nil || err != nil {
		return run, err
	}

	run, err := o.newRun(ctx)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithRunID(ctx, run.RunID)
	log := logger.FromContext(ctx, o.logger)

	batch, err := o.fetch(ctx, log)
	if err != nil {
		run.State = StateFailed
		run.Error = err.Error()
		log.Warnw("Fetch failed, no run recorded", logger.FieldKind, Kind(err), logger.FieldError, err)
		return run, err
	}

	if batch.Len() == 0 {
		if batch.Skipped > 0 {
			if err := batch.Commit(ctx); err != nil {
				log.Warnw("Failed to acknowledge malformed messages", logger.FieldError, err)
			}
		}
		if err := run.transition(StateComplete, o.now()); err != nil {
			return run, err
		}
		log.Debugw("Empty batch, nothing to do", "skipped", batch.Skipped)
		return run, nil
	}

	run.Batch = batch.Records
	if err := run.transition(StateGating, o.now()); err != nil {
		return run, err
	}
	if err := o.store.Create(ctx, run); err != nil {
		// Not acknowledged, so the source hands these records out again on
		// the next fetch.
		return run, err
	}

	// The batch is checkpointed, so it is safe to acknowledge.
	if err := batch.Commit(ctx); err != nil {
		log.Warnw("Failed to acknowledge batch, records may be redelivered", logger.FieldError, err)
	}

	log.Infow("Run started",
		logger.FieldCount, batch.Len(),
		"skipped", batch.Skipped)
	return run, o.advance(ctx, run)
}

// Replay re-runs the batch of a failed run under a new run id.
func (o *Orchestrator) Replay(ctx context.Context, failedRunID string) (*Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev, err := o.store.Get(ctx, failedRunID)
	if err != nil {
		return nil, err
	}
	if prev.State != StateFailed {
		return nil, errors.NewInvalidRequestError("run %s is %s, only failed runs can be replayed", prev.RunID, prev.State)
	}
	if len(prev.Batch) == 0 {
		return nil, errors.NewInvalidRequestError("run %s has no checkpointed batch", prev.RunID)
	}

	// Earlier runs must reach the manifest before the replay does.
	if run, err := o.resumeUnfinished(ctx); err != nil {
		return run, errors.Wrap(err, "failed to finish pending run before replay")
	}

	run, err := o.newRun(ctx)
	if err != nil {
		return nil, err
	}
	run.Batch = prev.Batch
	run.ReplayOf = prev.RunID
	if err := run.transition(StateGating, o.now()); err != nil {
		return run, err
	}
	if err := o.store.Create(ctx, run); err != nil {
		return run, err
	}

	ctx = logger.WithRunID(ctx, run.RunID)
	logger.FromContext(ctx, o.logger).Infow("Replaying failed run",
		"replay_of", prev.RunID,
		logger.FieldCount, len(run.Batch))
	return run, o.advance(ctx, run)
}

// resumeUnfinished drives the oldest unfinished run to a terminal state. It
// returns nil, nil when there is nothing to resume.
func (o *Orchestrator) resumeUnfinished(ctx context.Context) (*Run, error) {
	runs, err := o.store.Unfinished(ctx)
	if err != nil {
		return nil, err
	}

	for _, run := range runs {
		rctx := logger.WithRunID(ctx, run.RunID)
		log := logger.FromContext(rctx, o.logger)

		if run.State == StateFetching {
			// The batch was never checkpointed.
			o.fail(rctx, run, errors.New("interrupted while fetching"))
			continue
		}

		log.Infow("Resuming run", logger.FieldState, run.State)
		return run, o.advance(rctx, run)
	}
	return nil, nil
}

func (o *Orchestrator) newRun(ctx context.Context) (*Run, error) {
	latest, err := o.store.LatestRunID(ctx)
	if err != nil {
		return nil, err
	}
	now := o.now()
	return &Run{
		RunID:     NewRunID(now, latest),
		State:     StateFetching,
		StartedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (o *Orchestrator) fetch(ctx context.Context, log *zap.SugaredLogger) (*source.Batch, error) {
	var batch *source.Batch
	err := retry(ctx, o.cfg.FetchRetry, log, "fetch",
		func(err error) bool { return errors.Is(err, source.ErrTransient) },
		func() error {
			var err error
			batch, err = o.source.FetchBatch(ctx, o.cfg.MaxBatch, o.cfg.MaxWait)
			return err
		})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// advance moves a checkpointed run forward until it is terminal or a
// retryable failure leaves it in RECORDING.
func (o *Orchestrator) advance(ctx context.Context, run *Run) error {
	log := logger.FromContext(ctx, o.logger)
	start := o.now()

	for !run.State.Terminal() {
		if err := ctx.Err(); err != nil {
			if o.recorded(run) {
				return o.finishRecorded(ctx, run, log)
			}
			return o.fail(ctx, run, errors.Wrapf(err, "run cancelled in %s", run.State))
		}

		switch run.State {
		case StateGating:
			validated, err := o.evaluator().Evaluate(ctx, run.Batch)
			if err != nil {
				return o.fail(ctx, run, err)
			}
			run.Validated = validated
			if err := o.checkpoint(ctx, run, StateWriting); err != nil {
				return err
			}

		case StateWriting:
			paths, err := o.writer.Write(ctx, run.RunID, run.Batch, run.Validated)
			if err != nil {
				return o.fail(ctx, run, err)
			}
			run.Paths = &paths
			if err := o.checkpoint(ctx, run, StateRecording); err != nil {
				return err
			}

		case StateRecording:
			if err := o.record(ctx, run, log); err != nil {
				return err
			}

		default:
			return errors.AssertionFailedf("run %s has unknown state %q", run.RunID, run.State)
		}
	}

	ingested, accepted, rejected := run.Counts()
	log.Infow("Run complete",
		logger.FieldIngested, ingested,
		logger.FieldAccepted, accepted,
		logger.FieldRejected, rejected,
		logger.FieldDurationMS, o.now().Sub(start).Milliseconds())
	return nil
}

func (o *Orchestrator) record(ctx context.Context, run *Run, log *zap.SugaredLogger) error {
	if run.Paths == nil {
		return o.fail(ctx, run, errors.AssertionFailedf("run %s reached recording without artifact paths", run.RunID))
	}
	entry := lineage.NewEntry(run.RunID, run.Validated, *run.Paths, run.StartedAt, o.now())

	err := retry(ctx, o.cfg.AppendRetry, log, "lineage append",
		func(err error) bool {
			return !errors.IsAny(err, lineage.ErrInvalidEntry, lineage.ErrOutOfOrder, lineage.ErrClosed)
		},
		func() error {
			_, err := o.recorder.Append(ctx, entry)
			return err
		})
	if err != nil {
		if ctx.Err() != nil {
			if o.recorded(run) {
				return o.finishRecorded(ctx, run, log)
			}
			return o.fail(ctx, run, errors.Wrap(ctx.Err(), "run cancelled in recording"))
		}
		if errors.IsAny(err, lineage.ErrInvalidEntry, lineage.ErrOutOfOrder) {
			return o.fail(ctx, run, errors.Mark(err, ErrLineageAppend))
		}

		err = errors.Mark(errors.Wrapf(err, "failed to append lineage for run %s", run.RunID), ErrLineageAppend)
		run.Error = err.Error()
		run.UpdatedAt = o.now()
		if uerr := o.store.Update(ctx, run); uerr != nil {
			log.Errorw("Failed to checkpoint run", logger.FieldError, uerr)
		}
		log.Errorw("Lineage append exhausted retries, run left in recording",
			logger.FieldKind, Kind(err),
			logger.FieldError, err)
		return err
	}

	run.Error = ""
	return o.checkpoint(ctx, run, StateComplete)
}

// recorded reports whether a RECORDING run already has its manifest entry.
// Such a run must never be failed.
func (o *Orchestrator) recorded(run *Run) bool {
	return run.State == StateRecording && o.recorder.Has(run.RunID)
}

// finishRecorded completes a run whose entry reached the manifest before
// the context was cancelled.
func (o *Orchestrator) finishRecorded(ctx context.Context, run *Run, log *zap.SugaredLogger) error {
	run.Error = ""
	if err := o.checkpoint(ctx, run, StateComplete); err != nil {
		return err
	}
	log.Infow("Run already in manifest, completed despite cancellation")
	return nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, run *Run, to State) error {
	if err := run.transition(to, o.now()); err != nil {
		return err
	}
	if err := o.store.Update(context.WithoutCancel(ctx), run); err != nil {
		return err
	}
	logger.FromContext(ctx, o.logger).Debugw("Run checkpointed", logger.FieldState, to)
	return nil
}

// fail marks the run FAILED and returns cause.
func (o *Orchestrator) fail(ctx context.Context, run *Run, cause error) error {
	log := logger.FromContext(ctx, o.logger)

	run.Error = cause.Error()
	if err := run.transition(StateFailed, o.now()); err != nil {
		return errors.WithSecondaryError(cause, err)
	}
	if err := o.store.Update(context.WithoutCancel(ctx), run); err != nil {
		log.Errorw("Failed to checkpoint failed run", logger.FieldError, err)
	}

	log.Errorw("Run failed",
		logger.FieldState, run.State,
		logger.FieldKind, Kind(cause),
		logger.FieldError, cause)
	return cause
}
