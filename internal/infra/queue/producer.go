package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/segmentio/kafka-go"
)

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // Hash balancer ensures messages with same key go to same partition
	}
	slog.Info("Kafka Producer initialized", "brokers", brokers, "topic", topic)
	return &KafkaProducer{writer: w}
}

// Publish writes a sync event keyed by entity, so events of one company stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, event *domain.SyncEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Entity),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "category", Value: []byte(event.Category)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write to kafka", "error", err)
		return err
	}

	slog.Debug("Published sync event to Kafka", "entity", event.Entity, "category", event.Category, "added", event.Added)
	return nil
}

// PublishDeadLetter forwards a trigger that could not be served, with the failure reason
// as a header.
func (p *KafkaProducer) PublishDeadLetter(ctx context.Context, key, value []byte, reason string) error {
	msg := kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(reason)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write to kafka", "error", err)
		return err
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
