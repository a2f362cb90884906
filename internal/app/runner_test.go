package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/sitesim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_FailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	symbols := []string{"A1", "A2", "A3", "A4", "A5"}
	for i, s := range symbols {
		f.site.Companies[s] = &sitesim.Company{ID: fmt.Sprint(100 + i), Prices: sitesim.PriceRows(lastDay, 10+i)}
	}
	f.site.BrokenCompanies["A3"] = true

	reports := NewRunner(f.engine, 2, domain.Delay{}).Run(context.Background(), domain.CategoryPrices, symbols, domain.SyncOptions{})
	require.Len(t, reports, 5)

	for i, rep := range reports {
		assert.Equal(t, symbols[i], rep.Entity)
		if rep.Entity == "A3" {
			assert.ErrorIs(t, rep.Err, domain.ErrConnect)
			assert.Contains(t, rep.String(), "failed:")
			continue
		}
		require.NoError(t, rep.Err)
		assert.Equal(t, 10+i, rep.Result.Added)
		assert.Equal(t, fmt.Sprintf("%s prices: added %d", rep.Entity, 10+i), rep.String())
	}

	rows, err := f.store.Rows("A5", domain.CategoryPrices)
	require.NoError(t, err)
	assert.Len(t, rows, 14)
}

func TestRunner_ReportsNoNewRecords(t *testing.T) {
	f := newFixture(t)
	f.site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 5)}
	runner := NewRunner(f.engine, 1, domain.Delay{})

	runner.Run(context.Background(), domain.CategoryPrices, []string{"NABIL"}, domain.SyncOptions{})
	reports := runner.Run(context.Background(), domain.CategoryPrices, []string{"NABIL"}, domain.SyncOptions{})
	require.Len(t, reports, 1)
	assert.Equal(t, "NABIL prices: no new records", reports[0].String())
}

// blockingSyncer holds every sync until release is closed.
type blockingSyncer struct {
	started chan string
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSyncer) Sync(ctx context.Context, entity string, category domain.Category, opts domain.SyncOptions) (domain.SyncResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- entity
	<-b.release
	return domain.SyncResult{Entity: entity, Category: category, Skipped: true}, nil
}

func TestRunner_RejectsSameEntityTwice(t *testing.T) {
	syncer := &blockingSyncer{started: make(chan string, 1), release: make(chan struct{})}
	runner := NewRunner(syncer, 1, domain.Delay{})

	done := make(chan Report)
	go func() {
		done <- runner.RunOne(context.Background(), "NABIL", domain.CategoryPrices, domain.SyncOptions{})
	}()
	<-syncer.started

	rep := runner.RunOne(context.Background(), "NABIL", domain.CategoryPrices, domain.SyncOptions{})
	assert.ErrorIs(t, rep.Err, ErrAlreadyRunning)

	close(syncer.release)
	first := <-done
	require.NoError(t, first.Err)
	assert.Equal(t, 1, syncer.calls)

	// The guard is released afterwards.
	syncer.started = make(chan string, 1)
	rep = runner.RunOne(context.Background(), "NABIL", domain.CategoryPrices, domain.SyncOptions{})
	assert.NoError(t, rep.Err)
}

func TestRunner_CancelledRunReportsRemaining(t *testing.T) {
	syncer := &blockingSyncer{started: make(chan string, 4), release: make(chan struct{})}
	close(syncer.release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := NewRunner(syncer, 1, domain.Delay{Min: time.Hour, Max: time.Hour}).Run(ctx, domain.CategoryPrices, []string{"A", "B", "C"}, domain.SyncOptions{})
	require.Len(t, reports, 3)
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
			assert.True(t, strings.Contains(r.String(), "context canceled"))
		}
	}
	assert.GreaterOrEqual(t, failed, 2)
}

func TestEntitiesFor(t *testing.T) {
	symbols := func() ([]string, error) { return []string{"NABIL", "HBL"}, nil }

	got, err := EntitiesFor(domain.CategoryFloorsheet, symbols)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.FloorsheetEntity}, got)

	got, err = EntitiesFor(domain.CategoryDividends, symbols)
	require.NoError(t, err)
	assert.Equal(t, []string{"NABIL", "HBL"}, got)
}

func TestPartitionStored(t *testing.T) {
	f := newFixture(t)
	f.site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 3)}
	_, err := f.engine.Sync(context.Background(), "NABIL", domain.CategoryPrices, domain.SyncOptions{})
	require.NoError(t, err)

	stored, empty, err := PartitionStored(context.Background(), f.store, domain.CategoryPrices, []string{"HBL", "NABIL", "NICA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NABIL"}, stored)
	assert.Equal(t, []string{"HBL", "NICA"}, empty)

	stored, empty, err = PartitionStored(context.Background(), f.store, domain.CategoryDividends, []string{"NABIL"})
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, []string{"NABIL"}, empty)

	_, _, err = PartitionStored(context.Background(), f.store, domain.Category("news"), []string{"NABIL"})
	assert.Error(t, err)
}
