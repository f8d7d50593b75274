package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage counters and histograms, partitioned by consulta endpoint
// where the endpoint matters.

var (
	// Sync walk
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Total synchronization runs started",
	}, []string{"trigger"})

	SyncKeysSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "sync",
		Name:      "keys_skipped_total",
		Help:      "Total (modality, range, endpoint) keys skipped as already synced",
	}, []string{"endpoint"})

	SyncKeysAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "sync",
		Name:      "keys_aborted_total",
		Help:      "Total keys abandoned for this run after an unrecoverable fetch error",
	}, []string{"endpoint"})

	SyncBudgetAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "sync",
		Name:      "budget_aborts_total",
		Help:      "Total runs interrupted by the wall-clock budget",
	}, []string{"trigger"})

	SyncPagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "sync",
		Name:      "pages_processed_total",
		Help:      "Total pages fetched, resolved, reconciled and checkpointed",
	}, []string{"endpoint"})

	SyncPageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pncp",
		Subsystem: "sync",
		Name:      "page_duration_seconds",
		Help:      "End-to-end processing duration for one page",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	// Fetcher
	FetcherRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "fetcher",
		Name:      "requests_total",
		Help:      "Total consulta API page requests",
	}, []string{"endpoint", "status"})

	FetcherErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "fetcher",
		Name:      "errors_total",
		Help:      "Total consulta API failures after retry exhaustion",
	}, []string{"endpoint"})

	FetcherLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pncp",
		Subsystem: "fetcher",
		Name:      "request_duration_seconds",
		Help:      "Consulta API request duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	FetcherRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "fetcher",
		Name:      "rate_limit_waits_total",
		Help:      "Total requests delayed by the client rate limiter",
	})

	// Reference resolver
	ResolverReferencesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "resolver",
		Name:      "references_created_total",
		Help:      "Total reference rows created (insert-if-absent)",
	}, []string{"entity"})

	// Tender reconciler
	ReconcilerTendersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "reconciler",
		Name:      "tenders_created_total",
		Help:      "Total tender rows inserted",
	})

	ReconcilerTendersUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "reconciler",
		Name:      "tenders_updated_total",
		Help:      "Total tender rows updated after a global update date change",
	})

	ReconcilerTendersUnchanged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "reconciler",
		Name:      "tenders_unchanged_total",
		Help:      "Total known tenders whose global update date did not move",
	})

	ReconcilerRowsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "reconciler",
		Name:      "rows_rejected_total",
		Help:      "Total raw rows excluded from a batch, by rejection reason",
	}, []string{"reason"})

	ReconcilerEventsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "reconciler",
		Name:      "change_events_emitted_total",
		Help:      "Total TenderChanged events published to the transport",
	})

	ReconcilerEventEmitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "reconciler",
		Name:      "change_event_emit_errors_total",
		Help:      "Total TenderChanged publish failures (contained, never fail the batch)",
	})

	// Progress tracker
	ProgressCheckpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "progress",
		Name:      "checkpoints_total",
		Help:      "Total checkpoint upserts",
	}, []string{"endpoint"})

	// Notifier
	NotifyEventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "notify",
		Name:      "events_consumed_total",
		Help:      "Total TenderChanged events consumed from the transport",
	})

	NotifySent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "notify",
		Name:      "notifications_sent_total",
		Help:      "Total change notifications handed to the mailer",
	})

	NotifyFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pncp",
		Subsystem: "notify",
		Name:      "notifications_failed_total",
		Help:      "Total mailer send failures (logged and dropped)",
	})
)
