package source

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/teranos/curate/errors"
)

// Producer enqueues raw message payloads for a Source to consume.
type Producer interface {
	Enqueue(ctx context.Context, payloads ...[]byte) (int, error)
	Close() error
}

// KafkaProducer writes payloads to the topic a Kafka source reads.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a synchronous producer for cfg.Topic.
func NewKafkaProducer(cfg KafkaConfig) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}}
}

// Enqueue implements Producer.
func (p *KafkaProducer) Enqueue(ctx context.Context, payloads ...[]byte) (int, error) {
	msgs := make([]kafka.Message, len(payloads))
	for i, payload := range payloads {
		msgs[i] = kafka.Message{Value: payload}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "failed to produce %d messages to %s", len(msgs), p.writer.Topic), ErrTransient)
	}
	return len(msgs), nil
}

// Close flushes and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
