package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/metrics"
	"github.com/segmentio/kafka-go"
)

// DeadLetterWriter receives messages the handler failed on.
type DeadLetterWriter interface {
	PublishDeadLetter(ctx context.Context, key, value []byte, reason string) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConsumer struct {
	reader MessageReader
	dlq    DeadLetterWriter
}

func NewKafkaConsumer(brokers []string, topic string, groupID string, dlq DeadLetterWriter) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	slog.Info("Kafka Consumer initialized", "brokers", brokers, "topic", topic, "group", groupID)
	return NewConsumer(r, dlq)
}

// NewConsumer wraps an existing reader.
func NewConsumer(r MessageReader, dlq DeadLetterWriter) *KafkaConsumer {
	return &KafkaConsumer{reader: r, dlq: dlq}
}

type MessageHandler func(ctx context.Context, req *domain.SyncRequest) error

// Start reads sync requests until the reader fails or ctx is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context, handler MessageHandler) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Error("Error reading kafka message", "error", err)
			}
			break
		}

		var req domain.SyncRequest
		if err := json.Unmarshal(m.Value, &req); err != nil {
			slog.Error("Error unmarshaling sync request", "error", err)
			metrics.TriggersConsumed.WithLabelValues("invalid").Inc()
			c.deadLetter(ctx, m, err)
			continue
		}

		slog.Debug("Received sync request from Kafka", "entity", req.Entity, "category", req.Category, "partition", m.Partition)

		if err := handler(ctx, &req); err != nil {
			slog.Error("Error handling sync request", "entity", req.Entity, "category", req.Category, "error", err)
			metrics.TriggersConsumed.WithLabelValues("failed").Inc()
			c.deadLetter(ctx, m, err)
			continue
		}
		metrics.TriggersConsumed.WithLabelValues("ok").Inc()
	}
}

func (c *KafkaConsumer) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	slog.Info("Publishing failed message to DLQ", "offset", m.Offset)
	if err := c.dlq.PublishDeadLetter(ctx, m.Key, m.Value, cause.Error()); err != nil {
		slog.Error("Failed to publish to DLQ", "offset", m.Offset, "error", err)
		return
	}
	metrics.DLQMessagesPublished.WithLabelValues(m.Topic).Inc()
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
