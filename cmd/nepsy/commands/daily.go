package commands

import (
	"log/slog"
	"os"

	"github.com/NepsyCrawler/cmd/server/factory"
	"github.com/NepsyCrawler/internal/app"
	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/pkg/config"
	"github.com/NepsyCrawler/pkg/logging"
	"github.com/spf13/cobra"
)

var dailyFlags syncFlags

func init() {
	f := dailyCmd.Flags()
	f.StringSliceVar(&dailyFlags.symbols, "symbols", nil, "Comma-separated company symbols. Defaults to the priority list.")
	f.IntVar(&dailyFlags.concurrency, "concurrency", 0, "Entities merged in parallel. Defaults to SYNC_CONCURRENCY.")
	f.StringVar(&dailyFlags.dataDir, "data-dir", "", "Data directory. Defaults to DATA_DIR.")
	dailyFlags.maxPages = -1
	rootCmd.AddCommand(dailyCmd)
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Appends today's prices row from the market summary to every company with price history.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		applyFlags(cfg, dailyFlags)
		logging.Setup(os.Stderr, cfg.LogLevel, "text")

		runner, store, cleanup, err := buildRunner(cmd.Context(), cfg, factory.NewDailySources)
		if err != nil {
			return err
		}
		defer cleanup()

		entities, err := entitiesFor(domain.CategoryPrices, cfg, dailyFlags.symbols)
		if err != nil {
			return err
		}
		// Companies without history need a full sync first; one row would seed a
		// watermark that hides everything older.
		stored, empty, err := app.PartitionStored(cmd.Context(), store, domain.CategoryPrices, entities)
		if err != nil {
			return err
		}
		if len(empty) > 0 {
			slog.Info("Skipping companies without price history", "count", len(empty))
		}

		printReports(cmd.OutOrStdout(), runner.Run(cmd.Context(), domain.CategoryPrices, stored, factory.SyncOptions(cfg)))
		return nil
	},
}
