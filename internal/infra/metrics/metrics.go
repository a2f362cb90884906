package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_added_total",
			Help: "The total number of records appended to the store",
		},
		[]string{"category"},
	)

	RecordsDuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_duplicates_skipped_total",
			Help: "The total number of fetched records skipped because their key is already stored",
		},
		[]string{"category"},
	)

	RecordParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_parse_errors_total",
			Help: "The total number of fetched rows that could not be decoded",
		},
		[]string{"category"},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pages_fetched_total",
			Help: "The total number of pages or batches fetched",
		},
		[]string{"source"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of one entity sync",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"category"},
	)

	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncs_total",
			Help: "Entity syncs by outcome (added, no_new, partial, failed)",
		},
		[]string{"category", "outcome"},
	)

	WorkerActiveCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_active_count",
			Help: "Number of workers currently processing jobs",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_published_total",
			Help: "Total number of sync events published",
		},
		[]string{"category"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_event_publish_errors_total",
			Help: "Total number of sync events that failed to publish",
		},
		[]string{"category"},
	)

	DLQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_published_total",
			Help: "Total number of messages published to DLQ",
		},
		[]string{"source"},
	)

	TriggersConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_triggers_consumed_total",
			Help: "Sync requests consumed from the trigger topic",
		},
		[]string{"status"},
	)
)
