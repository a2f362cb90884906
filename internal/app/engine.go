package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/decoder"
	"github.com/NepsyCrawler/internal/infra/metrics"
	"github.com/NepsyCrawler/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine merges freshly fetched rows of one (entity, category) into the store. Rows
// whose key is already stored are dropped, so repeated syncs never duplicate data.
type Engine struct {
	store    domain.Store
	sources  map[domain.Category]domain.Source
	decoders map[domain.Category]domain.Decoder
	events   domain.EventProducer
	sampler  *logging.ErrorSampler
	tracer   trace.Tracer
}

type EngineOption func(*engineConfig)

type engineConfig struct {
	now func() time.Time
}

// WithClock fixes the time used for date-less rows such as floorsheet trades.
func WithClock(now func() time.Time) EngineOption {
	return func(c *engineConfig) { c.now = now }
}

func NewEngine(store domain.Store, sources map[domain.Category]domain.Source, events domain.EventProducer, opts ...EngineOption) (*Engine, error) {
	cfg := engineConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	decoders := make(map[domain.Category]domain.Decoder, len(sources))
	for c := range sources {
		d, err := decoder.GetDecoder(c, cfg.now)
		if err != nil {
			return nil, err
		}
		decoders[c] = d
	}

	return &Engine{
		store:    store,
		sources:  sources,
		decoders: decoders,
		events:   events,
		sampler:  logging.NewErrorSampler(20),
		tracer:   otel.Tracer("nepsy-crawler"),
	}, nil
}

// Sync fetches what is new for entity and appends it in one store write.
//
// For ordered categories the newest stored key is handed to the source as a watermark
// unless opts.FullRescan is set. Fetch errors return before anything is written; a
// partial walk still appends what it collected.
func (e *Engine) Sync(ctx context.Context, entity string, category domain.Category, opts domain.SyncOptions) (domain.SyncResult, error) {
	result := domain.SyncResult{Entity: entity, Category: category}

	ctx, span := e.tracer.Start(ctx, "sync", trace.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("category", string(category)),
		attribute.Bool("full_rescan", opts.FullRescan),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.SyncDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
	}()

	fail := func(err error) (domain.SyncResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.SyncsTotal.WithLabelValues(string(category), "failed").Inc()
		return result, err
	}

	schema, err := domain.SchemaFor(category)
	if err != nil {
		return fail(err)
	}
	src, ok := e.sources[category]
	if !ok {
		return fail(fmt.Errorf("no source for category %q", category))
	}
	dec := e.decoders[category]

	existing, err := e.store.ExistingKeys(ctx, entity, schema)
	if err != nil {
		return fail(fmt.Errorf("failed to read stored keys: %w", err))
	}

	if schema.Ordered && !opts.FullRescan {
		result.Watermark = newest(existing)
	}
	slog.Info("Starting sync", "entity", entity, "category", category, "stored", len(existing), "watermark", string(result.Watermark))

	var fresh []domain.Record
	duplicates := 0
	handle := func(p domain.Page) error {
		metrics.PagesFetched.WithLabelValues(src.Name()).Inc()
		for _, raw := range p.Rows {
			result.Fetched++
			rec, err := dec.Decode(raw)
			if err != nil {
				result.ParseErrors++
				metrics.RecordParseErrors.WithLabelValues(string(category)).Inc()
				if e.sampler.ShouldLog(string(category) + ":" + entity) {
					slog.Warn("Skipping row that could not be decoded", "entity", entity, "category", category, "page", p.Index, "error", err)
				}
				continue
			}
			key := rec.Key()
			if _, ok := existing[key]; ok {
				duplicates++
				continue
			}
			existing[key] = struct{}{}
			fresh = append(fresh, rec)
		}
		return ctx.Err()
	}

	fetched, err := src.Fetch(ctx, entity, domain.FetchOptions{
		StopAt:    result.Watermark,
		MaxPages:  opts.MaxPages,
		PageDelay: opts.PageDelay,
	}, handle)
	if n := e.sampler.Flush(string(category) + ":" + entity); n > 0 {
		slog.Warn("Suppressed repeated decode errors", "entity", entity, "category", category, "count", n)
	}
	if err != nil {
		return fail(fmt.Errorf("fetch %s for %s: %w", category, entity, err))
	}
	result.Partial = fetched.Partial
	span.SetAttributes(attribute.Int("pages", fetched.Pages), attribute.Int("rows", fetched.Rows))
	if fetched.Partial {
		slog.Warn("Walk ended early, keeping rows collected so far", "entity", entity, "category", category, "reason", fetched.StopReason)
	}

	if duplicates > 0 {
		metrics.RecordsDuplicatesSkipped.WithLabelValues(string(category)).Add(float64(duplicates))
	}

	if len(fresh) == 0 {
		result.Skipped = true
		metrics.SyncsTotal.WithLabelValues(string(category), outcome(result)).Inc()
		slog.Info("No new records", "entity", entity, "category", category, "fetched", result.Fetched)
		return result, nil
	}

	written, err := e.store.AppendRows(ctx, entity, schema, fresh)
	if err != nil {
		return fail(fmt.Errorf("failed to append rows: %w", err))
	}
	if lost := len(fresh) - len(written); lost > 0 {
		// Another writer stored these keys between ExistingKeys and the append.
		metrics.RecordsDuplicatesSkipped.WithLabelValues(string(category)).Add(float64(lost))
	}
	if len(written) == 0 {
		result.Skipped = true
		metrics.SyncsTotal.WithLabelValues(string(category), outcome(result)).Inc()
		slog.Info("No new records", "entity", entity, "category", category, "fetched", result.Fetched)
		return result, nil
	}
	result.Added = len(written)
	metrics.RecordsAdded.WithLabelValues(string(category)).Add(float64(result.Added))
	metrics.SyncsTotal.WithLabelValues(string(category), outcome(result)).Inc()
	slog.Info("Added new records", "entity", entity, "category", category, "added", result.Added, "fetched", result.Fetched)

	e.publish(ctx, entity, category, written)
	return result, nil
}

func (e *Engine) publish(ctx context.Context, entity string, category domain.Category, recs []domain.Record) {
	if e.events == nil {
		return
	}
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key()
	}
	event := &domain.SyncEvent{
		Entity:   entity,
		Category: category,
		Added:    len(recs),
		Keys:     keys,
		SyncedAt: time.Now().UTC(),
	}
	// The rows are stored; a lost event is only logged.
	if err := e.events.Publish(ctx, event); err != nil {
		slog.Error("Error publishing sync event", "entity", entity, "category", category, "error", err)
		metrics.PublishErrors.WithLabelValues(string(category)).Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(string(category)).Inc()
}

// newest returns the greatest stored key.
func newest(keys map[string]struct{}) domain.Watermark {
	var w string
	for k := range keys {
		if k > w {
			w = k
		}
	}
	return domain.Watermark(w)
}

func outcome(r domain.SyncResult) string {
	switch {
	case r.Partial:
		return "partial"
	case r.Skipped:
		return "no_new"
	default:
		return "added"
	}
}
