package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ReadinessWaiter blocks startup until the optional backends answer. A nil Mongo
// client or an empty broker list is not waited for.
type ReadinessWaiter struct {
	mongoClient *mongo.Client
	brokers     []string
	topics      []string
	interval    time.Duration
}

func NewReadinessWaiter(mongoClient *mongo.Client, brokers []string, topics ...string) *ReadinessWaiter {
	return &ReadinessWaiter{
		mongoClient: mongoClient,
		brokers:     brokers,
		topics:      topics,
		interval:    2 * time.Second,
	}
}

func (w *ReadinessWaiter) WaitForDependencies(ctx context.Context) error {
	if w.mongoClient != nil {
		if err := w.waitForMongo(ctx); err != nil {
			return err
		}
	}
	if len(w.brokers) > 0 {
		if err := w.waitForKafka(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *ReadinessWaiter) waitForMongo(ctx context.Context) error {
	slog.Info("Waiting for MongoDB...")
	// No timeout: wait until the context is cancelled.
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
				slog.Warn("MongoDB not ready yet", "error", err)
				continue
			}
			slog.Info("MongoDB is ready")
			return nil
		}
	}
}

func (w *ReadinessWaiter) waitForKafka(ctx context.Context) error {
	slog.Info("Waiting for Kafka...")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.checkKafka(ctx); err != nil {
				slog.Warn("Kafka not ready yet", "error", err)
				continue
			}
			slog.Info("Kafka is ready")
			return nil
		}
	}
}

func (w *ReadinessWaiter) checkKafka(ctx context.Context) error {
	for _, broker := range w.brokers {
		conn, err := net.DialTimeout("tcp", broker, 2*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to broker %s: %w", broker, err)
		}
		_ = conn.Close()
	}

	conn, err := kafka.DialContext(ctx, "tcp", w.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	for _, topic := range w.topics {
		if topic == "" {
			continue
		}
		partitions, err := conn.ReadPartitions(topic)
		if err != nil {
			return fmt.Errorf("failed to read partitions for topic %s: %w", topic, err)
		}
		if len(partitions) == 0 {
			return fmt.Errorf("topic %s has no partitions", topic)
		}
	}
	return nil
}
