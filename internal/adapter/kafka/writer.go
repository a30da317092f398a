package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hazard-predict/internal/config"
	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxPublishAttempts = 3
	initialBackoff     = 200 * time.Millisecond
	maxBackoff         = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes resolved prediction attempts to a Kafka topic.
// It implements domain.EventPublisher.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, topic: cfg.KafkaResultTopic, logger: logger}
}

// Publish writes one event keyed by its attempt ID, retrying with
// exponential backoff until maxPublishAttempts is reached or ctx ends.
func (w *Writer) Publish(ctx context.Context, event domain.PredictionEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = w.writer.WriteMessages(ctx, msg)
		if err == nil {
			w.logger.Debug("prediction event published", "attempt", event.ID, "topic", w.topic)
			return nil
		}
		if attempt == maxPublishAttempts || ctx.Err() != nil {
			break
		}
		w.logger.Warn("publish failed, retrying",
			"attempt", event.ID,
			"try", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("write prediction event %s: %w", event.ID, err)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event domain.PredictionEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "hazard", Value: []byte(event.Hazard)},
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "resolved_at", Value: []byte(event.ResolvedAt.Format(time.RFC3339))},
		},
	}, nil
}
