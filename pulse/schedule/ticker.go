// Package schedule triggers pipeline runs on a cadence or when the source
// backlog reaches a size threshold.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/curate/db"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/pipeline"
)

// TriggerReason says why a run was started.
type TriggerReason string

const (
	TriggerCadence TriggerReason = "cadence"
	TriggerSize    TriggerReason = "size"
	TriggerManual  TriggerReason = "manual"
)

// Runner executes one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (*pipeline.Run, error)
}

// Backlog reports how many records wait in the source.
type Backlog interface {
	Pending(ctx context.Context) (int, error)
}

// TickerConfig contains configuration for the Pulse ticker
type TickerConfig struct {
	// Cadence between scheduled runs. Zero disables the cadence trigger.
	Cadence time.Duration
	// PollInterval is how often the backlog is checked against SizeThreshold.
	PollInterval time.Duration
	// SizeThreshold triggers a run once the backlog reaches it. Zero
	// disables the size trigger.
	SizeThreshold int
	// MaxRunsPerMinute caps triggered runs. Zero means unlimited.
	MaxRunsPerMinute int
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Cadence:          5 * time.Minute,
		PollInterval:     time.Second,
		SizeThreshold:    1500,
		MaxRunsPerMinute: 6,
	}
}

// Stats is a snapshot of ticker activity.
type Stats struct {
	StartedAt   time.Time
	Runs        int64
	Failures    int64
	RateLimited int64
	LastReason  TriggerReason
	LastRunID   string
	LastRunAt   time.Time
	LastError   string
}

// Ticker runs the orchestrator sequentially. Triggers that fire while a run
// is in flight are dropped: the loop only looks for new triggers between runs.
type Ticker struct {
	runner  Runner
	backlog Backlog
	cfg     TickerConfig
	limiter *rate.Limiter
	manual  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.SugaredLogger

	mu    sync.Mutex
	stats Stats
}

// NewTicker creates a new Pulse ticker. backlog may be nil when the size
// trigger is disabled.
func NewTicker(runner Runner, backlog Backlog, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), runner, backlog, cfg, log)
}

// NewTickerWithContext creates a ticker with a parent context
func NewTickerWithContext(ctx context.Context, runner Runner, backlog Backlog, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if log == nil {
		log = logger.ComponentLogger("pulse")
	}
	tickerCtx, cancel := context.WithCancel(ctx)

	limit := rate.Inf
	burst := 1
	if cfg.MaxRunsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.MaxRunsPerMinute))
		burst = cfg.MaxRunsPerMinute
	}

	return &Ticker{
		runner:  runner,
		backlog: backlog,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		manual:  make(chan struct{}, 1),
		ctx:     tickerCtx,
		cancel:  cancel,
		logger:  log,
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.mu.Lock()
	t.stats.StartedAt = time.Now()
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run()
	t.logger.Infow("Pulse ticker started",
		"cadence", t.cfg.Cadence,
		"poll_interval", t.cfg.PollInterval,
		"size_threshold", t.cfg.SizeThreshold,
		"max_runs_per_minute", t.cfg.MaxRunsPerMinute)
}

// Stop cancels the in-flight run, if any, and waits for the loop to exit.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.logger.Infow("Pulse ticker stopped")
}

// Trigger requests a manual run. It does not block; a request made while
// another is pending is merged into it.
func (t *Ticker) Trigger() {
	select {
	case t.manual <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of ticker activity.
func (t *Ticker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// run is the main ticker loop
func (t *Ticker) run() {
	defer t.wg.Done()

	var cadence, poll <-chan time.Time
	if t.cfg.Cadence > 0 {
		ticker := time.NewTicker(t.cfg.Cadence)
		defer ticker.Stop()
		cadence = ticker.C
	}
	if t.cfg.SizeThreshold > 0 && t.backlog != nil && t.cfg.PollInterval > 0 {
		ticker := time.NewTicker(t.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-cadence:
			t.fire(TriggerCadence)
		case <-poll:
			if t.backlogReached() {
				t.fire(TriggerSize)
			}
		case <-t.manual:
			t.fire(TriggerManual)
		}
	}
}

func (t *Ticker) backlogReached() bool {
	pending, err := t.backlog.Pending(t.ctx)
	if err != nil {
		if t.ctx.Err() == nil && !db.IsDatabaseClosed(err) {
			t.logger.Warnw("Failed to check source backlog", logger.FieldError, err)
		}
		return false
	}
	return pending >= t.cfg.SizeThreshold
}

// fire executes one run unless the rate limit is exhausted.
func (t *Ticker) fire(reason TriggerReason) {
	if !t.limiter.Allow() {
		t.mu.Lock()
		t.stats.RateLimited++
		t.mu.Unlock()
		t.logger.Debugw("Run rate limit reached, trigger dropped", logger.FieldTrigger, reason)
		return
	}

	start := time.Now()
	t.logger.Infow("Pulse triggering run", logger.FieldTrigger, reason)

	run, err := t.runner.RunOnce(t.ctx)
	if db.IsDatabaseClosed(err) {
		// shutting down
		t.logger.Debugw("Database closed, run abandoned", logger.FieldTrigger, reason)
		return
	}

	t.mu.Lock()
	t.stats.Runs++
	t.stats.LastReason = reason
	t.stats.LastRunAt = start
	t.stats.LastError = ""
	if run != nil {
		t.stats.LastRunID = run.RunID
	}
	if err != nil {
		t.stats.Failures++
		t.stats.LastError = err.Error()
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Errorw("Pulse FAILED",
			logger.FieldTrigger, reason,
			logger.FieldKind, pipeline.Kind(err),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
			logger.FieldError, err)
		return
	}

	fields := []any{
		logger.FieldTrigger, reason,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	}
	if run != nil {
		ingested, accepted, rejected := run.Counts()
		fields = append(fields,
			logger.FieldRunID, run.RunID,
			logger.FieldState, run.State,
			logger.FieldIngested, ingested,
			logger.FieldAccepted, accepted,
			logger.FieldRejected, rejected)
	}
	t.logger.Infow("Pulse OK", fields...)
}
