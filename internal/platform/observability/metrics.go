package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedItemsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_feed_items_ingested_total",
		Help: "The total number of raw items stored from RSS feeds",
	}, []string{"source"})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_feed_fetches_total",
		Help: "The total number of feed fetch attempts",
	}, []string{"status"})

	PipelineProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_pipeline_processed_total",
		Help: "The total number of raw items processed by the pipeline",
	}, []string{"status"})

	PipelineBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "news_pipeline_backlog_size",
		Help: "Number of pending raw items in the database",
	})

	PipelineBatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "news_pipeline_batch_duration_seconds",
		Help:    "Duration in seconds to process a pipeline batch",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	NormalizerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "news_normalizer_request_duration_seconds",
		Help:    "Duration of AI normalizer requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	NormalizerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_normalizer_failures_total",
		Help: "Normalizer responses rejected by reason",
	}, []string{"reason"})

	DedupDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_dedup_decisions_total",
		Help: "Duplicate check outcomes by detection method",
	}, []string{"method", "outcome"})

	DedupFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "news_dedup_fallback_saves_total",
		Help: "Articles saved to the store after the duplicate check failed",
	})

	IndexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_index_operations_total",
		Help: "Search index calls by operation and status",
	}, []string{"operation", "status"})

	SweepDuplicatesFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "news_sweep_duplicates_found",
		Help: "Duplicate candidates found by the last sweep",
	})

	SweepDuplicatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "news_sweep_duplicates_removed_total",
		Help: "Articles removed by duplicate sweeps",
	})

	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "news_sweep_errors_total",
		Help: "Removal failures during duplicate sweeps",
	})

	SourceRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_source_registrations_total",
		Help: "Source registration attempts by result",
	}, []string{"result"})

	IndexSyncDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_index_sync_documents_total",
		Help: "Documents pushed by the index sync by status",
	}, []string{"status"})
)

// Status label values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)
