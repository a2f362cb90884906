package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/NepsyCrawler/cmd/server/factory"
	"github.com/NepsyCrawler/internal/app"
	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/gateway"
	"github.com/NepsyCrawler/internal/infra/queue"
	"github.com/NepsyCrawler/internal/infra/resolver"
	"github.com/NepsyCrawler/internal/infra/session"
	"github.com/NepsyCrawler/pkg/config"
	"github.com/NepsyCrawler/pkg/logging"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	symbols     []string
	full        bool
	newOnly     bool
	maxPages    int
	concurrency int
	dataDir     string
}

var flags syncFlags

func init() {
	f := syncCmd.Flags()
	f.StringSliceVar(&flags.symbols, "symbols", nil, "Comma-separated company symbols. Defaults to the priority list.")
	f.BoolVar(&flags.full, "full", false, "Ignore the stored watermark and walk every page.")
	f.BoolVar(&flags.newOnly, "new-only", false, "Only sync entities with nothing stored yet.")
	f.IntVar(&flags.maxPages, "max-pages", -1, "Stop after this many pages per entity (0 = no limit). Defaults to MAX_PAGES.")
	f.IntVar(&flags.concurrency, "concurrency", 0, "Entities synced in parallel. Defaults to SYNC_CONCURRENCY.")
	f.StringVar(&flags.dataDir, "data-dir", "", "Data directory. Defaults to DATA_DIR.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync <prices|dividends|right-shares|floorsheet|all>",
	Short: "Fetches what is new for each entity and appends it to the store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, err := parseTarget(args[0])
		if err != nil {
			return err
		}

		cfg := config.Load()
		applyFlags(cfg, flags)
		logging.Setup(os.Stderr, cfg.LogLevel, "text")

		runner, store, cleanup, err := buildRunner(cmd.Context(), cfg, factory.NewSources)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := factory.SyncOptions(cfg)
		opts.FullRescan = flags.full
		for _, c := range categories {
			entities, err := entitiesFor(c, cfg, flags.symbols)
			if err != nil {
				return err
			}
			if flags.newOnly {
				_, empty, err := app.PartitionStored(cmd.Context(), store, c, entities)
				if err != nil {
					return err
				}
				slog.Info("Syncing entities without stored data", "category", c, "entities", len(empty), "skipped", len(entities)-len(empty))
				entities = empty
			}
			reports := runner.Run(cmd.Context(), c, entities, opts)
			printReports(cmd.OutOrStdout(), reports)
		}
		return nil
	},
}

func parseTarget(name string) ([]domain.Category, error) {
	if strings.EqualFold(name, "all") {
		return domain.Categories(), nil
	}
	c, err := domain.ParseCategory(name)
	if err != nil {
		return nil, err
	}
	return []domain.Category{c}, nil
}

func applyFlags(cfg *config.Config, f syncFlags) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if f.maxPages >= 0 {
		cfg.MaxPages = f.maxPages
	}
	if f.concurrency > 0 {
		cfg.SyncConcurrency = f.concurrency
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
		cfg.CompanyListPath = f.dataDir + "/company_list.json"
		cfg.CompanyIDMappingPath = f.dataDir + "/company_id_mapping.json"
	}
}

func entitiesFor(c domain.Category, cfg *config.Config, symbols []string) ([]string, error) {
	if len(symbols) > 0 && c != domain.CategoryFloorsheet {
		return resolver.NormalizeSymbols(symbols), nil
	}
	return app.EntitiesFor(c, factory.SymbolLoader(cfg))
}

type sourcesFunc func(*config.Config, *session.Opener) (map[domain.Category]domain.Source, error)

func buildRunner(ctx context.Context, cfg *config.Config, newSources sourcesFunc) (*app.Runner, domain.Store, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("Cleanup failed", "error", err)
			}
		}
	}

	client, err := factory.ConnectMongo(ctx, cfg)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("connect mongo: %w", err)
	}
	if client != nil {
		closers = append(closers, func() error { return client.Disconnect(context.Background()) })
	}

	store, err := factory.NewStore(cfg, client)
	if err != nil {
		return nil, nil, cleanup, err
	}

	var events domain.EventProducer = gateway.NewLogSink()
	if len(cfg.KafkaBrokers) > 0 {
		producer := queue.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, producer.Close)
		events = producer
	}

	res, err := factory.NewResolver(cfg)
	if err != nil {
		return nil, nil, cleanup, err
	}
	sources, err := newSources(cfg, factory.NewOpener(cfg, res))
	if err != nil {
		return nil, nil, cleanup, err
	}
	engine, err := factory.NewEngine(store, sources, events)
	if err != nil {
		return nil, nil, cleanup, err
	}
	runner, err := factory.NewRunner(engine, cfg)
	if err != nil {
		return nil, nil, cleanup, err
	}
	return runner, store, cleanup, nil
}

func printReports(w io.Writer, reports []app.Report) {
	for _, r := range reports {
		fmt.Fprintln(w, r.String())
	}
}
