package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/queue"
)

// TriggerService runs one sync per request consumed from the trigger topic. Failed
// requests go to the dead letter topic through the consumer.
type TriggerService struct {
	consumer *queue.KafkaConsumer
	runner   *Runner
	opts     domain.SyncOptions
}

func NewTriggerService(consumer *queue.KafkaConsumer, runner *Runner, opts domain.SyncOptions) *TriggerService {
	return &TriggerService{consumer: consumer, runner: runner, opts: opts}
}

func (s *TriggerService) Start(ctx context.Context) {
	slog.Info("Starting trigger service (Kafka Consumer)")
	go s.consumer.Start(ctx, s.handleRequest)
}

func (s *TriggerService) handleRequest(ctx context.Context, req *domain.SyncRequest) error {
	category, err := domain.ParseCategory(string(req.Category))
	if err != nil {
		return err
	}
	entity := strings.ToUpper(strings.TrimSpace(req.Entity))
	if category == domain.CategoryFloorsheet {
		entity = domain.FloorsheetEntity
	}
	if entity == "" {
		return errors.New("sync request without entity")
	}

	opts := s.opts
	opts.FullRescan = req.FullRescan
	rep := s.runner.RunOne(ctx, entity, category, opts)
	if rep.Err != nil {
		return fmt.Errorf("sync %s %s: %w", entity, category, rep.Err)
	}
	slog.Info(rep.String(), "trigger", true)
	return nil
}

func (s *TriggerService) Stop() error {
	return s.consumer.Close()
}
