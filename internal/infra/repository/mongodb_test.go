package repository_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	mongodbContainer, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	defer func() {
		if err := mongodbContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	endpoint, err := mongodbContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	require.NoError(t, err)
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("failed to disconnect client: %s", err)
		}
	}()

	repo, err := repository.NewMongoRepository(client, "test_nepsy", "records")
	require.NoError(t, err)

	prices, err := domain.SchemaFor(domain.CategoryPrices)
	require.NoError(t, err)
	dividends, err := domain.SchemaFor(domain.CategoryDividends)
	require.NoError(t, err)

	t.Run("AppendRows and ExistingKeys", func(t *testing.T) {
		written, err := repo.AppendRows(ctx, "NABIL", prices, []domain.Record{
			domain.PriceRecord{Date: "2026-02-19", LTP: 500},
			domain.PriceRecord{Date: "2026-02-20", LTP: 505},
		})
		require.NoError(t, err)
		assert.Len(t, written, 2)

		keys, err := repo.ExistingKeys(ctx, "NABIL", prices)
		require.NoError(t, err)
		assert.Len(t, keys, 2)
		assert.Contains(t, keys, "2026-02-20")

		other, err := repo.ExistingKeys(ctx, "NABIL", dividends)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("Duplicate keys are ignored", func(t *testing.T) {
		written, err := repo.AppendRows(ctx, "NABIL", prices, []domain.Record{
			domain.PriceRecord{Date: "2026-02-20", LTP: 999},
			domain.PriceRecord{Date: "2026-02-21", LTP: 510},
		})
		require.NoError(t, err)
		require.Len(t, written, 1, "only the new key is reported as written")
		assert.Equal(t, "2026-02-21", written[0].Key())

		rows, err := repo.Rows(ctx, "NABIL", domain.CategoryPrices)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "505", rows[1]["ltp"], "stored rows are never rewritten")
	})

	t.Run("Concurrent appends of the same key keep one row", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AppendRows(ctx, "HBL", dividends, []domain.Record{
					domain.DividendRecord{FiscalYear: "2080/2081", CashDividend: 10},
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		keys, err := repo.ExistingKeys(ctx, "HBL", dividends)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("Undecodable keys are skipped and logged", func(t *testing.T) {
		_, err := client.Database("test_nepsy").Collection("records").InsertOne(ctx, bson.M{
			"entity": "NABIL", "category": "prices", "key": 42,
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		defer slog.SetDefault(prev)

		keys, err := repo.ExistingKeys(ctx, "NABIL", prices)
		require.NoError(t, err)
		assert.Len(t, keys, 3)
		assert.Contains(t, buf.String(), "undecodable key")
		assert.Contains(t, buf.String(), "skipped=1")
	})
}
