package source

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/record"
)

// Inbox is a record queue backed by the inbox_messages table of the node
// database. Fetched rows stay in the table until the batch is committed.
type Inbox struct {
	db                *sql.DB
	pollInterval      time.Duration
	reconnectAttempts int
	logger            *zap.SugaredLogger
}

// NewInbox creates an inbox source over a migrated database.
func NewInbox(db *sql.DB, pollInterval time.Duration, reconnectAttempts int, log *zap.SugaredLogger) *Inbox {
	if log == nil {
		log = logger.ComponentLogger("source")
	}
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Inbox{db: db, pollInterval: pollInterval, reconnectAttempts: reconnectAttempts, logger: log}
}

// Enqueue appends raw message payloads to the inbox in order.
func (in *Inbox) Enqueue(ctx context.Context, payloads ...[]byte) (int, error) {
	tx, err := in.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin inbox transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO inbox_messages (payload, enqueued_at) VALUES (?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare inbox insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range payloads {
		if _, err := stmt.ExecContext(ctx, string(p), now); err != nil {
			return 0, errors.Wrap(err, "failed to enqueue message")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit inbox transaction")
	}
	return len(payloads), nil
}

type inboxMessage struct {
	id      int64
	payload []byte
}

// FetchBatch implements Source. It polls until maxCount messages are queued
// or maxWait elapses, then takes the oldest maxCount messages.
func (in *Inbox) FetchBatch(ctx context.Context, maxCount int, maxWait time.Duration) (*Batch, error) {
	deadline := time.Now().Add(maxWait)

	for {
		pending, err := in.pendingWithReconnects(ctx)
		if err != nil {
			return nil, err
		}
		if pending >= maxCount || !time.Now().Before(deadline) {
			break
		}

		wait := in.pollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	var msgs []inboxMessage
	err := withReconnects(ctx, in.reconnectAttempts, func() error {
		var qerr error
		msgs, qerr = in.oldest(ctx, maxCount)
		return qerr
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch from inbox")
	}

	fetchedAt := time.Now().UTC()
	records := make([]record.Raw, 0, len(msgs))
	skipped := 0
	for _, m := range msgs {
		r, err := record.Decode(m.payload, fetchedAt)
		if err != nil {
			skipped++
			in.logger.Warnw("Skipping malformed message",
				"inbox_id", m.id,
				logger.FieldError, err)
			continue
		}
		records = append(records, r)
	}

	var lastID int64
	if len(msgs) > 0 {
		lastID = msgs[len(msgs)-1].id
	}
	return NewBatch(records, skipped, func(ctx context.Context) error {
		if lastID == 0 {
			return nil
		}
		return in.ack(ctx, lastID)
	}), nil
}

func (in *Inbox) oldest(ctx context.Context, limit int) ([]inboxMessage, error) {
	rows, err := in.db.QueryContext(ctx,
		`SELECT id, payload FROM inbox_messages ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query inbox")
	}
	defer rows.Close()

	var msgs []inboxMessage
	for rows.Next() {
		var m inboxMessage
		var payload string
		if err := rows.Scan(&m.id, &payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan inbox message")
		}
		m.payload = []byte(payload)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate inbox")
	}
	return msgs, nil
}

// ack deletes every message up to and including lastID. Ids only grow, so
// these are exactly the fetched messages.
func (in *Inbox) ack(ctx context.Context, lastID int64) error {
	if _, err := in.db.ExecContext(ctx, `DELETE FROM inbox_messages WHERE id <= ?`, lastID); err != nil {
		return errors.Wrap(err, "failed to acknowledge inbox messages")
	}
	return nil
}

// Pending implements Source.
func (in *Inbox) Pending(ctx context.Context) (int, error) {
	var n int
	if err := in.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inbox_messages`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count inbox messages")
	}
	return n, nil
}

func (in *Inbox) pendingWithReconnects(ctx context.Context) (int, error) {
	var n int
	err := withReconnects(ctx, in.reconnectAttempts, func() error {
		var perr error
		n, perr = in.Pending(ctx)
		return perr
	})
	if err != nil {
		return 0, errors.Wrap(err, "poll inbox")
	}
	return n, nil
}

// Close implements Source. The database is owned by the caller.
func (in *Inbox) Close() error {
	return nil
}
