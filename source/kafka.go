package source

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/record"
)

// KafkaConfig configures the consumer group reader.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	GroupID           string
	ReconnectAttempts int
}

// messageReader is the part of *kafka.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Config() kafka.ReaderConfig
	Close() error
}

// Kafka consumes records from a topic as part of a consumer group. Offsets
// are committed only by Batch.Commit.
//
// The reader's position advances on every fetch, and a later commit on the
// same partition covers earlier offsets. Messages fetched but never handed
// to a committed batch are therefore kept and delivered first by the next
// FetchBatch.
type Kafka struct {
	reader            messageReader
	reconnectAttempts int
	logger            *zap.SugaredLogger

	mu sync.Mutex
	// redeliver holds fetched messages not yet covered by a Commit, oldest first.
	redeliver []kafka.Message
	// outstanding is the last batch handed out and not yet committed.
	outstanding []kafka.Message
	batchSeq    uint64
}

// NewKafka creates a consumer group reader. Connections are established
// lazily on the first fetch.
func NewKafka(cfg KafkaConfig, log *zap.SugaredLogger) *Kafka {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		// explicit commits only
		CommitInterval: 0,
	})
	return newKafka(reader, cfg.ReconnectAttempts, log)
}

func newKafka(reader messageReader, reconnectAttempts int, log *zap.SugaredLogger) *Kafka {
	if log == nil {
		log = logger.ComponentLogger("source")
	}
	return &Kafka{reader: reader, reconnectAttempts: reconnectAttempts, logger: log}
}

// FetchBatch implements Source.
func (k *Kafka) FetchBatch(ctx context.Context, maxCount int, maxWait time.Duration) (*Batch, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	// an abandoned batch is delivered again
	if len(k.outstanding) > 0 {
		k.redeliver = append(append([]kafka.Message(nil), k.outstanding...), k.redeliver...)
		k.outstanding = nil
	}

	n := min(maxCount, len(k.redeliver))
	msgs := append([]kafka.Message(nil), k.redeliver[:n]...)
	k.redeliver = k.redeliver[n:]
	if n > 0 {
		k.logger.Infow("Redelivering uncommitted messages", logger.FieldCount, n)
	}

	wctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	for len(msgs) < maxCount {
		var msg kafka.Message
		err := withReconnects(wctx, k.reconnectAttempts, func() error {
			var ferr error
			msg, ferr = k.reader.FetchMessage(wctx)
			return ferr
		})
		if err != nil {
			if ctx.Err() == nil && wctx.Err() != nil {
				// batch window elapsed
				break
			}
			k.redeliver = append(msgs, k.redeliver...)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrapf(err, "fetch from kafka topic %s", k.reader.Config().Topic)
		}
		msgs = append(msgs, msg)
	}

	fetchedAt := time.Now().UTC()
	records := make([]record.Raw, 0, len(msgs))
	skipped := 0
	for _, msg := range msgs {
		r, err := record.Decode(msg.Value, fetchedAt)
		if err != nil {
			skipped++
			k.logger.Warnw("Skipping malformed message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				logger.FieldError, err)
			continue
		}
		records = append(records, r)
	}
	k.outstanding = msgs
	k.batchSeq++
	seq := k.batchSeq

	k.logger.Debugw("Kafka batch fetched",
		logger.FieldCount, len(records),
		"skipped", skipped)

	return NewBatch(records, skipped, func(ctx context.Context) error {
		return k.commit(ctx, seq, msgs)
	}), nil
}

// commit acknowledges msgs. The caller has checkpointed them, so they are
// not redelivered even when the broker rejects the commit; the next commit on
// the partition covers them.
func (k *Kafka) commit(ctx context.Context, seq uint64, msgs []kafka.Message) error {
	k.mu.Lock()
	if k.batchSeq == seq {
		k.outstanding = nil
	}
	k.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	if err := k.reader.CommitMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "commit kafka offsets")
	}
	return nil
}

// Pending implements Source using the reader's consumer lag.
func (k *Kafka) Pending(ctx context.Context) (int, error) {
	lag := k.reader.Stats().Lag
	if lag < 0 {
		return 0, nil
	}
	return int(lag), nil
}

// Close implements Source.
func (k *Kafka) Close() error {
	return k.reader.Close()
}
