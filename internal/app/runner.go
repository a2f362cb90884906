package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/metrics"
	"github.com/NepsyCrawler/internal/infra/paginator"
)

// ErrAlreadyRunning is returned for an (entity, category) that is being synced by
// another caller.
var ErrAlreadyRunning = errors.New("sync already running")

// Syncer is the single-entity operation the runner fans out.
type Syncer interface {
	Sync(ctx context.Context, entity string, category domain.Category, opts domain.SyncOptions) (domain.SyncResult, error)
}

// Report is the outcome of one entity in a run.
type Report struct {
	Entity   string
	Category domain.Category
	Result   domain.SyncResult
	Err      error
}

func (r Report) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s %s: failed: %v", r.Entity, r.Category, r.Err)
	case r.Result.Skipped:
		return fmt.Sprintf("%s %s: no new records", r.Entity, r.Category)
	default:
		return fmt.Sprintf("%s %s: added %d", r.Entity, r.Category, r.Result.Added)
	}
}

// Runner syncs many entities with a bounded worker pool. A failing entity is reported
// and never stops the others.
type Runner struct {
	syncer      Syncer
	workerCount int
	entityDelay domain.Delay
	active      sync.Map
}

func NewRunner(syncer Syncer, workerCount int, entityDelay domain.Delay) *Runner {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Runner{syncer: syncer, workerCount: workerCount, entityDelay: entityDelay}
}

type job struct {
	index  int
	entity string
}

// Run syncs every entity of one category. Reports come back in input order.
func (r *Runner) Run(ctx context.Context, category domain.Category, entities []string, opts domain.SyncOptions) []Report {
	reports := make([]Report, len(entities))
	jobs := make(chan job)

	workers := min(r.workerCount, len(entities))
	slog.Info("Starting run", "category", category, "entities", len(entities), "workers", workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			first := true
			for j := range jobs {
				if !first {
					if err := paginator.Sleep(ctx, r.entityDelay); err != nil {
						reports[j.index] = Report{Entity: j.entity, Category: category, Err: err}
						continue
					}
				}
				first = false

				metrics.WorkerActiveCount.Inc()
				reports[j.index] = r.RunOne(ctx, j.entity, category, opts)
				metrics.WorkerActiveCount.Dec()
				slog.Info(reports[j.index].String(), "worker_id", id)
			}
		}(i)
	}

	for i, e := range entities {
		select {
		case jobs <- job{index: i, entity: e}:
		case <-ctx.Done():
			for k := i; k < len(entities); k++ {
				reports[k] = Report{Entity: entities[k], Category: category, Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return reports
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, rep := range reports {
		if rep.Err != nil {
			failed++
		}
	}
	slog.Info("Run finished", "category", category, "entities", len(entities), "failed", failed)
	return reports
}

// RunOne syncs a single entity unless it is already in flight.
func (r *Runner) RunOne(ctx context.Context, entity string, category domain.Category, opts domain.SyncOptions) Report {
	rep := Report{Entity: entity, Category: category}

	key := string(category) + "|" + entity
	if _, loaded := r.active.LoadOrStore(key, true); loaded {
		slog.Warn("Skipping concurrent run", "entity", entity, "category", category)
		rep.Err = ErrAlreadyRunning
		return rep
	}
	defer r.active.Delete(key)

	rep.Result, rep.Err = r.syncer.Sync(ctx, entity, category, opts)
	if rep.Err != nil {
		slog.Error("Sync failed", "entity", entity, "category", category, "error", rep.Err)
	}
	return rep
}
