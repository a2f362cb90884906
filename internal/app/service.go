package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NepsyCrawler/internal/domain"
)

// SchedulerService re-syncs the configured categories every interval. Each category
// runs in its own loop so a slow floorsheet walk does not delay company prices.
type SchedulerService struct {
	runner     *Runner
	categories []domain.Category
	symbols    func() ([]string, error)
	interval   time.Duration
	opts       domain.SyncOptions
}

func NewSchedulerService(runner *Runner, categories []domain.Category, symbols func() ([]string, error), interval time.Duration, opts domain.SyncOptions) *SchedulerService {
	return &SchedulerService{
		runner:     runner,
		categories: categories,
		symbols:    symbols,
		interval:   interval,
		opts:       opts,
	}
}

func (s *SchedulerService) Start(ctx context.Context) {
	slog.Info("Starting scheduler", "interval", s.interval, "categories", s.categories)

	var wg sync.WaitGroup
	for _, c := range s.categories {
		wg.Add(1)
		go func(c domain.Category) {
			defer wg.Done()
			s.loop(ctx, c)
		}(c)
	}

	<-ctx.Done()
	slog.Info("Context cancelled, stopping scheduler...")
	wg.Wait()
	slog.Info("All category loops stopped")
}

func (s *SchedulerService) loop(ctx context.Context, c domain.Category) {
	s.runOnce(ctx, c)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, c)
		}
	}
}

// runOnce syncs every entity of c; errors are in the reports.
func (s *SchedulerService) runOnce(ctx context.Context, c domain.Category) []Report {
	entities, err := EntitiesFor(c, s.symbols)
	if err != nil {
		slog.Error("Failed to load symbols", "category", c, "error", err)
		return nil
	}
	return s.runner.Run(ctx, c, entities, s.opts)
}

// EntitiesFor returns the entities synced for a category: the market-wide floorsheet
// entity, or every company symbol.
func EntitiesFor(c domain.Category, symbols func() ([]string, error)) ([]string, error) {
	if c == domain.CategoryFloorsheet {
		return []string{domain.FloorsheetEntity}, nil
	}
	return symbols()
}

// PartitionStored splits entities by whether the store already holds rows of category
// for them. Order is kept within each half.
func PartitionStored(ctx context.Context, store domain.Store, category domain.Category, entities []string) (stored, empty []string, err error) {
	schema, err := domain.SchemaFor(category)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entities {
		keys, err := store.ExistingKeys(ctx, e, schema)
		if err != nil {
			return nil, nil, fmt.Errorf("read stored keys of %s: %w", e, err)
		}
		if len(keys) > 0 {
			stored = append(stored, e)
		} else {
			empty = append(empty, e)
		}
	}
	return stored, empty, nil
}
