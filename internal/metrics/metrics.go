package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts cache lookups by pool and result (hit, miss, bypass, error).
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_cache_requests_total",
			Help: "Cache lookups by pool and result",
		},
		[]string{"pool", "result"},
	)

	// CacheInvalidations counts keys removed by explicit invalidation.
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_cache_invalidated_keys_total",
			Help: "Keys removed by invalidation, by pool",
		},
		[]string{"pool"},
	)

	// LiveQueueDepth is the number of analysis requests waiting for the worker.
	LiveQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insights_live_queue_depth",
			Help: "Pending live-call analysis requests",
		},
	)

	// LiveQueueItems counts worker outcomes (processed, failed, skipped, dropped).
	LiveQueueItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_live_queue_items_total",
			Help: "Live-call analysis requests by outcome",
		},
		[]string{"outcome"},
	)

	// AnomalyScores records final anomaly scores.
	AnomalyScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insights_anomaly_score",
			Help:    "Distribution of computed anomaly scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	// AnomalyFactorUnavailable counts factors skipped for missing input or baseline.
	AnomalyFactorUnavailable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_anomaly_factor_unavailable_total",
			Help: "Anomaly factors that could not be computed",
		},
		[]string{"factor"},
	)

	// RetrievalDegraded counts retrieval sections skipped because a collaborator failed.
	RetrievalDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_retrieval_degraded_total",
			Help: "Retrieval sections skipped after a collaborator failure",
		},
		[]string{"section"},
	)

	// SearchRequests counts call searches by type and outcome (ok, fallback, error).
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_search_requests_total",
			Help: "Call searches by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)
