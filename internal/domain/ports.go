package domain

import "context"

// Store is the durable, append-only record log.
type Store interface {
	// ExistingKeys returns every key stored for (entity, schema.Category).
	ExistingKeys(ctx context.Context, entity string, schema Schema) (map[string]struct{}, error)
	// AppendRows appends records whose key is absent and returns the ones it wrote.
	// It never rewrites stored rows.
	AppendRows(ctx context.Context, entity string, schema Schema, records []Record) ([]Record, error)
}

// Source walks one category for one entity and hands each page to handle.
// A returned error is fatal for that entity; partial walks are reported in FetchResult.
type Source interface {
	Name() string
	Category() Category
	Fetch(ctx context.Context, entity string, opts FetchOptions, handle func(Page) error) (FetchResult, error)
}

// Resolver maps a symbol to the remote numeric identifier.
type Resolver interface {
	Resolve(symbol string) (string, bool)
}

// EventProducer publishes sync events.
type EventProducer interface {
	Publish(ctx context.Context, event *SyncEvent) error
	Close() error
}
