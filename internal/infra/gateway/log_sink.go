package gateway

import (
	"context"
	"log/slog"

	"github.com/NepsyCrawler/internal/domain"
)

// LogSink is the EventProducer used when no broker is configured: events only reach
// the log.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (g *LogSink) Publish(ctx context.Context, event *domain.SyncEvent) error {
	slog.Info("Sync event", "entity", event.Entity, "category", event.Category, "added", event.Added, "synced_at", event.SyncedAt)
	return nil
}

func (g *LogSink) Close() error { return nil }
