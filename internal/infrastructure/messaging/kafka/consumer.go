package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/segmentio/kafka-go"

	"github.com/agencypulse/crosssell-intelligence/internal/config"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// Handler processes one decoded event envelope.  Returning an error leaves
// the message uncommitted so the group redelivers it; the handler is
// responsible for knowing which of its errors are worth a retry.
type Handler func(ctx context.Context, env EventEnvelope) error

// readerInterface abstracts kafka.Reader for testing.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads envelope-wrapped events from one topic within a consumer
// group and dispatches them to a Handler.
type Consumer struct {
	reader readerInterface
	topic  string
	logger logging.Logger
}

// NewConsumer creates a Consumer for the given topic from the platform Kafka
// config.
func NewConsumer(cfg config.KafkaConfig, topic string, log logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		CommitInterval: cfg.CommitInterval,
	})
	return &Consumer{reader: r, topic: topic, logger: log}
}

// newConsumerWithReader is the test seam.
func newConsumerWithReader(r readerInterface, topic string, log logging.Logger) *Consumer {
	return &Consumer{reader: r, topic: topic, logger: log}
}

// Run consumes until ctx is cancelled or the reader closes.  Messages whose
// envelope fails to decode are committed and dropped: redelivery cannot fix a
// malformed payload.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, errors.CodeConsumeFailed, "failed to fetch kafka message").
				WithDetail("topic: " + c.topic)
		}

		var env EventEnvelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			c.logger.Error("dropping undecodable message",
				logging.String("topic", c.topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return errors.Wrap(err, errors.CodeConsumeFailed, "failed to commit kafka message")
			}
			continue
		}

		if err := handle(ctx, env); err != nil {
			c.logger.Error("handler failed, leaving message uncommitted",
				logging.String("topic", c.topic),
				logging.String("event_id", env.EventID),
				logging.Err(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, errors.CodeConsumeFailed, "failed to commit kafka message")
		}
	}
}

// Close shuts down the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
