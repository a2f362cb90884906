package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/NepsyCrawler/cmd/server/factory"
	"github.com/NepsyCrawler/internal/app"
	"github.com/NepsyCrawler/internal/infra/tracing"
	transport "github.com/NepsyCrawler/internal/transport/http"
	"github.com/NepsyCrawler/pkg/config"
	"github.com/NepsyCrawler/pkg/logging"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			// Infrastructure
			factory.NewMongoClient,
			factory.NewStore,
			factory.NewEventProducer,
			factory.NewDLQProducer,
			factory.NewKafkaConsumer,

			// Sources
			factory.NewResolver,
			factory.NewOpener,
			factory.NewSources,

			// Services
			factory.NewEngine,
			factory.NewRunner,
			factory.NewSchedulerService,
			factory.NewTriggerService,

			// HTTP Server
			NewHTTPServer,
		),
		fx.Invoke(
			SetupTracer,
			WaitForReady, // Block until dependencies are ready
			RegisterHooks,
			StartServer,
		),
	).Run()
}

func NewHTTPServer(cfg *config.Config, runner *app.Runner) *http.Server {
	return transport.NewHTTPServer(cfg.ServerPort, runner, factory.SyncOptions(cfg))
}

// --- Invokers ---

func RegisterHooks(lc fx.Lifecycle, scheduler *app.SchedulerService, trigger *app.TriggerService) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go scheduler.Start(ctx)
			if trigger != nil {
				trigger.Start(ctx)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

func SetupTracer(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.OTelEnabled {
		return nil
	}
	shutdown, err := tracing.InitTracer(context.Background(), "nepsy-crawler")
	if err != nil {
		slog.Error("Failed to initialize tracer", "error", err)
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Info("Shutting down tracer provider")
			return shutdown(ctx)
		},
	})
	return nil
}

// WaitForReady blocks until the configured backends answer.
func WaitForReady(cfg *config.Config, mongoClient *mongo.Client) error {
	waiter := app.NewReadinessWaiter(
		mongoClient,
		cfg.KafkaBrokers,
		cfg.KafkaTopic,
		cfg.KafkaTriggerTopic,
	)
	return waiter.WaitForDependencies(context.Background())
}

func StartServer(lc fx.Lifecycle, server *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				slog.Info("Starting admin server", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
