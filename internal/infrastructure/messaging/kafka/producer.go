package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/agencypulse/crosssell-intelligence/internal/config"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes envelope-wrapped events.  Topic is chosen per message so
// a single producer serves every topic the platform emits on.
type Producer struct {
	writer writerInterface
	source string
	logger logging.Logger
	closed atomic.Bool

	sent   atomic.Int64
	failed atomic.Int64
}

// NewProducer creates a Producer from the platform Kafka config.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.ProducerRetries,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Producer{
		writer: w,
		source: "crosssell-intelligence",
		logger: log,
	}
}

// newProducerWithWriter is the test seam.
func newProducerWithWriter(w writerInterface, log logging.Logger) *Producer {
	return &Producer{writer: w, source: "crosssell-intelligence", logger: log}
}

// Publish wraps payload in the standard envelope and writes it to topic,
// keyed so all events for one aggregate land on one partition in order.
func (p *Producer) Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	if p.closed.Load() {
		return errors.New(errors.CodePublishFailed, "producer is closed")
	}

	env, err := NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return errors.Wrap(err, errors.CodePublishFailed, "failed to build event envelope")
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.CodePublishFailed, "failed to marshal event envelope")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.CodePublishFailed, "failed to write kafka message").
			WithDetail("topic: " + topic)
	}

	p.sent.Add(1)
	p.logger.Debug("published event",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("event_id", env.EventID),
	)
	return nil
}

// Sent returns the count of successfully published messages.
func (p *Producer) Sent() int64 { return p.sent.Load() }

// Failed returns the count of failed publishes.
func (p *Producer) Failed() int64 { return p.failed.Load() }

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
