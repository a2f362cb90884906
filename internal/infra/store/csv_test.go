package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schema(t *testing.T, c domain.Category) domain.Schema {
	t.Helper()
	s, err := domain.SchemaFor(c)
	require.NoError(t, err)
	return s
}

func mustAppend(t *testing.T, s *CSVStore, entity string, sc domain.Schema, recs []domain.Record) []domain.Record {
	t.Helper()
	written, err := s.AppendRows(context.Background(), entity, sc, recs)
	require.NoError(t, err)
	return written
}

func TestCSVStore_PathLayout(t *testing.T) {
	s := NewCSVStore("/data")
	assert.Equal(t, "/data/company-wise/NABIL/prices.csv", s.Path("nabil", domain.CategoryPrices))
	assert.Equal(t, "/data/floorsheet/floorsheet.csv", s.Path(domain.FloorsheetEntity, domain.CategoryFloorsheet))
}

func TestCSVStore_AppendWritesHeaderOnce(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(t.TempDir())
	prices := schema(t, domain.CategoryPrices)

	keys, err := s.ExistingKeys(ctx, "NABIL", prices)
	require.NoError(t, err)
	assert.Empty(t, keys)

	mustAppend(t, s, "NABIL", prices, []domain.Record{
		domain.PriceRecord{Date: "2026-02-19", Open: 500, LTP: 505.5, Qty: 1000, Turnover: 500000},
	})
	mustAppend(t, s, "NABIL", prices, []domain.Record{
		domain.PriceRecord{Date: "2026-02-20", Open: 505, LTP: 510},
	})

	raw, err := os.ReadFile(s.Path("NABIL", domain.CategoryPrices))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,open,high,low,ltp,percent_change,qty,turnover", lines[0])
	assert.Equal(t, "2026-02-19,500,0,0,505.5,0,1000,500000", lines[1])

	keys, err = s.ExistingKeys(ctx, "NABIL", prices)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestCSVStore_NeverRewritesStoredKeys(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	dividends := schema(t, domain.CategoryDividends)

	mustAppend(t, s, "NABIL", dividends, []domain.Record{
		domain.DividendRecord{FiscalYear: "2080/2081", CashDividend: 10},
	})
	written := mustAppend(t, s, "NABIL", dividends, []domain.Record{
		domain.DividendRecord{FiscalYear: "2080/2081", CashDividend: 99},
		domain.DividendRecord{FiscalYear: "2081/2082", CashDividend: 12},
		domain.DividendRecord{FiscalYear: "2081/2082", CashDividend: 12},
	})
	require.Len(t, written, 1)
	assert.Equal(t, "2081/2082", written[0].Key())

	rows, err := s.Rows("NABIL", domain.CategoryDividends)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "10", rows[0]["cash_dividend"])
	assert.Equal(t, "2081/2082", rows[1]["fiscal_year"])
}

func TestCSVStore_CompositeKey(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(t.TempDir())
	rights := schema(t, domain.CategoryRightShares)

	mustAppend(t, s, "NABIL", rights, []domain.Record{
		domain.RightShareRecord{Ratio: "1:1", OpeningDate: "2024-01-10"},
		domain.RightShareRecord{Ratio: "10:3", OpeningDate: "2024-01-10"},
	})

	keys, err := s.ExistingKeys(ctx, "NABIL", rights)
	require.NoError(t, err)
	assert.Contains(t, keys, "2024-01-10|1:1")
	assert.Contains(t, keys, "2024-01-10|10:3")
}

func TestCSVStore_ConcurrentEntities(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(t.TempDir())
	prices := schema(t, domain.CategoryPrices)

	var wg sync.WaitGroup
	for e := 0; e < 5; e++ {
		for w := 0; w < 3; w++ {
			wg.Add(1)
			go func(entity string) {
				defer wg.Done()
				var recs []domain.Record
				for d := 1; d <= 20; d++ {
					recs = append(recs, domain.PriceRecord{Date: fmt.Sprintf("2026-01-%02d", d)})
				}
				_, err := s.AppendRows(ctx, entity, prices, recs)
				assert.NoError(t, err)
			}(fmt.Sprintf("E%d", e))
		}
	}
	wg.Wait()

	for e := 0; e < 5; e++ {
		rows, err := s.Rows(fmt.Sprintf("E%d", e), domain.CategoryPrices)
		require.NoError(t, err)
		assert.Len(t, rows, 20)
	}
}

func TestCSVStore_RejectsForeignHeader(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(t.TempDir())
	path := s.Path("NABIL", domain.CategoryPrices)
	require.NoError(t, os.MkdirAll(strings.TrimSuffix(path, "/prices.csv"), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("day,close\n2026-01-01,5\n"), 0o644))

	_, err := s.ExistingKeys(ctx, "NABIL", schema(t, domain.CategoryPrices))
	assert.Error(t, err)
}
