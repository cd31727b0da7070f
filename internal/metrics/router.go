package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query routing Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "queries_total",
			Help:      "Total number of routed queries",
		},
		[]string{"kind", "outcome"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askdex",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query routing duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "classifications_total",
			Help:      "Classifier decisions by scored kind",
		},
		[]string{"kind"},
	)

	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "fallbacks_total",
			Help:      "Fallback paths taken by the router",
		},
		[]string{"kind", "reason"},
	)

	ExtractionFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "extraction_fallbacks_total",
			Help:      "Hybrid filter extractions that fell back to pattern-only results",
		},
		[]string{"reason"},
	)

	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "quota_decisions_total",
			Help:      "Daily model quota checks by result",
		},
		[]string{"result"}, // "allowed" / "exceeded" / "error"
	)

	ContextTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "context_truncations_total",
			Help:      "Context windows truncated to fit the token budget",
		},
	)

	ContextTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "askdex",
			Name:      "context_tokens",
			Help:      "Estimated tokens of serialized model context",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 7500, 10000, 20000},
		},
	)

	IntentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "intent_cache_total",
			Help:      "Intent cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CatalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askdex",
			Name:      "catalog_reloads_total",
			Help:      "Catalog override file reloads",
		},
		[]string{"result"}, // "ok" / "error"
	)

	StoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askdex",
			Name:      "store_request_duration_seconds",
			Help:      "Structured store request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "op", "status"},
	)
)

var routerMetricsRegistered bool

// RegisterRouterMetrics registers query routing metrics. Must be called once from main.
func RegisterRouterMetrics() {
	if routerMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(ExtractionFallbacksTotal)
	prometheus.MustRegister(QuotaDecisionsTotal)
	prometheus.MustRegister(ContextTruncationsTotal)
	prometheus.MustRegister(ContextTokens)
	prometheus.MustRegister(IntentCacheTotal)
	prometheus.MustRegister(CatalogReloadsTotal)
	prometheus.MustRegister(StoreRequestDuration)
	routerMetricsRegistered = true
}
