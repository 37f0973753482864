package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/curate/logger"
)

// Backoff bounds a retried operation: Attempts tries in total, sleeping
// Initial after the first failure and doubling up to Max.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// retry runs op until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. It returns the last error.
func retry(ctx context.Context, b Backoff, log *zap.SugaredLogger, what string, retryable func(error) bool, op func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Initial

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}

		log.Warnw("Retrying after failure",
			"operation", what,
			logger.FieldAttempt, attempt,
			logger.FieldBackoff, delay,
			logger.FieldError, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if b.Max > 0 {
			delay = min(delay*2, b.Max)
		} else {
			delay *= 2
		}
	}
	return err
}
