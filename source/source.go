// Package source fetches batches of raw records from a queue and
// acknowledges them once the caller has checkpointed them.
package source

import (
	"context"
	"time"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/record"
)

// ErrTransient marks a transport failure that survived the immediate
// reconnect attempts. The caller decides whether to retry.
var ErrTransient = errors.New("transient source error")

// Source is a queue of raw records.
type Source interface {
	// FetchBatch returns once maxCount records are available or maxWait has
	// elapsed. An empty batch after the timeout is not an error.
	FetchBatch(ctx context.Context, maxCount int, maxWait time.Duration) (*Batch, error)
	// Pending estimates the number of records waiting to be fetched.
	Pending(ctx context.Context) (int, error)
	Close() error
}

// Batch is one fetch result. Records are delivered at least once until
// Commit acknowledges them.
type Batch struct {
	Records []record.Raw
	// Skipped counts malformed messages dropped during decoding. They are
	// acknowledged with the batch.
	Skipped int

	commit func(ctx context.Context) error
}

// NewBatch creates a batch acknowledged by commit (nil for nothing to ack).
func NewBatch(records []record.Raw, skipped int, commit func(ctx context.Context) error) *Batch {
	if records == nil {
		records = []record.Raw{}
	}
	return &Batch{Records: records, Skipped: skipped, commit: commit}
}

// Commit acknowledges the batch to the queue.
func (b *Batch) Commit(ctx context.Context) error {
	if b.commit == nil {
		return nil
	}
	return b.commit(ctx)
}

// Len is the number of decoded records.
func (b *Batch) Len() int {
	return len(b.Records)
}

// withReconnects runs op, retrying immediately up to attempts more times.
// The final failure is marked ErrTransient. Context errors are returned as is.
func withReconnects(ctx context.Context, attempts int, op func() error) error {
	var err error
	for i := 0; i <= attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Mark(err, ErrTransient)
}
