package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// IngestedPostsTotal counts normalized posts by payload format.
	IngestedPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postpipeline",
		Subsystem: "ingest",
		Name:      "posts_total",
		Help:      "Total number of canonical posts produced by the normalizer, labeled by payload format.",
	}, []string{"format"})

	// DroppedItemsTotal counts raw items skipped during normalization.
	DroppedItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "postpipeline",
		Subsystem: "ingest",
		Name:      "dropped_items_total",
		Help:      "Total number of raw payload items dropped for missing identity.",
	})

	// FilterResultsTotal counts engagement gate outcomes.
	FilterResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postpipeline",
		Subsystem: "filter",
		Name:      "results_total",
		Help:      "Total engagement gate decisions, labeled by result (analyze/skip).",
	}, []string{"result"})

	// UpsertDurationSeconds times the bulk raw_posts upsert.
	UpsertDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "postpipeline",
		Subsystem: "store",
		Name:      "upsert_duration_seconds",
		Help:      "Time to bulk-upsert a batch of canonical posts.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// QueuePublishTotal counts handoffs to the vision-analysis queue.
	QueuePublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postpipeline",
		Subsystem: "queue",
		Name:      "publish_total",
		Help:      "Total posts published to the vision-analysis queue, labeled by result.",
	}, []string{"result"})

	// TrendComputeDurationSeconds times a full trend aggregation pass.
	TrendComputeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "postpipeline",
		Subsystem: "trends",
		Name:      "compute_duration_seconds",
		Help:      "Time to load the analyzed window and compute live trends.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			IngestedPostsTotal,
			DroppedItemsTotal,
			FilterResultsTotal,
			UpsertDurationSeconds,
			QueuePublishTotal,
			TrendComputeDurationSeconds,
		)
	})
}
