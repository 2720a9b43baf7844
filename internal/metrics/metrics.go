// Package metrics exposes Prometheus instrumentation for recommendations, poster fetches, and catalog reloads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendRequests counts recommendation requests by outcome.
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinorec_recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok", "not_found", "invalid", "integrity", "error"
	)

	// RecommendDuration observes how long ranking took per request.
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kinorec_recommend_duration_seconds",
			Help:    "Duration of similarity ranking in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PosterFetches counts poster lookups by result.
	PosterFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinorec_poster_fetches_total",
			Help: "Total number of poster lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error", "rejected"
	)

	// CircuitBreakerState is the poster API breaker state.
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinorec_poster_circuit_breaker_state",
			Help: "Poster API circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// CatalogItems is the size of the catalog currently served.
	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinorec_catalog_items",
			Help: "Number of items in the loaded catalog",
		},
	)

	// CatalogReloads counts catalog loads and reloads by result.
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinorec_catalog_reloads_total",
			Help: "Total number of catalog reload attempts by result",
		},
		[]string{"result"}, // "success", "failure"
	)
)

// RecordRecommend records one recommendation request.
func RecordRecommend(outcome string, duration time.Duration) {
	RecommendRequests.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

// RecordPosterFetch records one poster lookup result.
func RecordPosterFetch(result string) {
	PosterFetches.WithLabelValues(result).Inc()
}

// RecordCatalogLoad records a catalog (re)load and the resulting size.
func RecordCatalogLoad(err error, size int) {
	if err != nil {
		CatalogReloads.WithLabelValues("failure").Inc()
		return
	}
	CatalogReloads.WithLabelValues("success").Inc()
	CatalogItems.Set(float64(size))
}
