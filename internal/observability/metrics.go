package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionDecisions counts admission gate verdicts by outcome and the
	// stage that rejected the draft ("none" when admitted).
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habersin_admission_decisions_total",
		Help: "Total number of submission admission decisions",
	}, []string{"outcome", "stage"})

	// ImageValidationDuration records how long a single image screen takes.
	ImageValidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "habersin_image_validation_seconds",
		Help:    "Image admissibility validation latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// ModerationTransitions counts committed moderation decisions.
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habersin_moderation_transitions_total",
		Help: "Total number of moderation transitions by decision",
	}, []string{"decision"})

	// StoreRetries counts retried store operations by final outcome.
	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habersin_store_retries_total",
		Help: "Total number of store operation attempts made by the retry helper",
	}, []string{"operation", "outcome"})

	// ReactionToggles counts reaction changes by type and action.
	ReactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habersin_reactions_total",
		Help: "Total number of reaction toggles",
	}, []string{"type", "action"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habersin_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RealtimeSnapshots counts snapshots delivered or dropped by subscriptions.
	RealtimeSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habersin_realtime_snapshots_total",
		Help: "Total number of realtime snapshots by result",
	}, []string{"result"})

	// ActiveWebSockets tracks open realtime websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "habersin_active_websockets",
		Help: "Number of open realtime websocket connections",
	})

	// BlobOperationLatency records blob store latency by backend and operation.
	BlobOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habersin_blob_operation_latency_seconds",
		Help:    "Blob store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation"})
)

// TrackBlob returns a function that records blob latency when called (e.g. defer).
func TrackBlob(backend, operation string) func() {
	start := time.Now()
	return func() {
		BlobOperationLatency.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	}
}
