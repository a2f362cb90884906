package factory

import (
	"errors"
	"fmt"

	"github.com/NepsyCrawler/internal/app"
	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/queue"
	"github.com/NepsyCrawler/internal/infra/resolver"
	"github.com/NepsyCrawler/pkg/config"
)

// SyncOptions are the per-sync defaults taken from configuration.
func SyncOptions(cfg *config.Config) domain.SyncOptions {
	return domain.SyncOptions{MaxPages: cfg.MaxPages}
}

// NewEngine creates the incremental sync engine.
func NewEngine(store domain.Store, sources map[domain.Category]domain.Source, events domain.EventProducer) (*app.Engine, error) {
	if events == nil {
		return nil, errors.New("event producer is nil")
	}
	return app.NewEngine(store, sources, events)
}

// NewRunner creates the multi-entity runner with validation.
func NewRunner(engine *app.Engine, cfg *config.Config) (*app.Runner, error) {
	if engine == nil {
		return nil, errors.New("engine is nil")
	}
	if cfg.SyncConcurrency <= 0 || cfg.SyncConcurrency > 32 {
		return nil, fmt.Errorf("invalid sync concurrency: %d (must be 1-32)", cfg.SyncConcurrency)
	}
	return app.NewRunner(engine, cfg.SyncConcurrency, domain.Delay{Min: cfg.EntityDelayMin, Max: cfg.EntityDelayMax}), nil
}

// SymbolLoader re-reads the priority list on every call so edits apply to the next run.
// Without a priority list every company in the id mapping is synced.
func SymbolLoader(cfg *config.Config) func() ([]string, error) {
	return func() ([]string, error) {
		return resolver.PrioritySymbols(cfg.CompanyListPath, cfg.CompanyIDMappingPath)
	}
}

// ParseCategories validates category names.
func ParseCategories(names []string) ([]domain.Category, error) {
	if len(names) == 0 {
		return nil, errors.New("no categories configured")
	}
	out := make([]domain.Category, 0, len(names))
	for _, n := range names {
		c, err := domain.ParseCategory(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// NewSchedulerService creates the periodic sync service.
func NewSchedulerService(runner *app.Runner, cfg *config.Config) (*app.SchedulerService, error) {
	categories, err := ParseCategories(cfg.SyncCategories)
	if err != nil {
		return nil, err
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("invalid sync interval: %s", cfg.SyncInterval)
	}
	return app.NewSchedulerService(runner, categories, SymbolLoader(cfg), cfg.SyncInterval, SyncOptions(cfg)), nil
}

// NewTriggerService creates the Kafka trigger service; nil when Kafka is not configured.
func NewTriggerService(consumer *queue.KafkaConsumer, runner *app.Runner, cfg *config.Config) *app.TriggerService {
	if consumer == nil {
		return nil
	}
	return app.NewTriggerService(consumer, runner, SyncOptions(cfg))
}
