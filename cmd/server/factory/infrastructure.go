// Package factory provides dependency injection constructors for infrastructure components.
package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/gateway"
	"github.com/NepsyCrawler/internal/infra/queue"
	"github.com/NepsyCrawler/internal/infra/repository"
	"github.com/NepsyCrawler/internal/infra/store"
	"github.com/NepsyCrawler/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

// ConnectMongo dials MongoDB when the mongo store backend is selected; otherwise it
// returns a nil client.
func ConnectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	if cfg.StoreBackend != "mongo" {
		return nil, nil
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("mongo URI not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
}

// NewMongoClient creates a MongoDB client with lifecycle management.
func NewMongoClient(lc fx.Lifecycle, cfg *config.Config) (*mongo.Client, error) {
	client, err := ConnectMongo(context.Background(), cfg)
	if err != nil || client == nil {
		return client, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

// NewStore selects the durable store backend.
func NewStore(cfg *config.Config, client *mongo.Client) (domain.Store, error) {
	switch cfg.StoreBackend {
	case "", "csv":
		if cfg.DataDir == "" {
			return nil, errors.New("data directory not configured")
		}
		return store.NewCSVStore(cfg.DataDir), nil
	case "mongo":
		if client == nil {
			return nil, errors.New("mongo client is nil")
		}
		if cfg.MongoDBName == "" {
			return nil, errors.New("mongo database name not configured")
		}
		if cfg.MongoColl == "" {
			return nil, errors.New("mongo collection name not configured")
		}
		return repository.NewMongoRepository(client, cfg.MongoDBName, cfg.MongoColl)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewEventProducer publishes sync events to Kafka, or to the log when no brokers are
// configured.
func NewEventProducer(cfg *config.Config, lc fx.Lifecycle) (domain.EventProducer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return gateway.NewLogSink(), nil
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("kafka topic not configured")
	}

	producer := queue.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})
	return producer, nil
}

// NewDLQProducer creates a Kafka producer for the Dead Letter Queue; nil without brokers.
func NewDLQProducer(cfg *config.Config, lc fx.Lifecycle) (*queue.KafkaProducer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	if cfg.KafkaDLQTopic == "" {
		return nil, errors.New("kafka DLQ topic not configured")
	}

	producer := queue.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaDLQTopic)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})
	return producer, nil
}

// NewKafkaConsumer creates the sync trigger consumer with DLQ support; nil without
// brokers.
func NewKafkaConsumer(
	cfg *config.Config,
	dlqProducer *queue.KafkaProducer,
	lc fx.Lifecycle,
) (*queue.KafkaConsumer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	if cfg.KafkaTriggerTopic == "" {
		return nil, errors.New("kafka trigger topic not configured")
	}

	var dlq queue.DeadLetterWriter
	if dlqProducer != nil {
		dlq = dlqProducer
	}
	consumer := queue.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTriggerTopic, "nepsy-sync-group", dlq)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return consumer.Close()
		},
	})
	return consumer, nil
}
