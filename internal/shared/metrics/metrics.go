package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tcontas"

var (
	// Registry holds every collector exported by this service.
	Registry = prometheus.NewRegistry()

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "document_uploads_total", Help: "Document uploads by outcome."},
		[]string{"outcome"},
	)
	extractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "text_extractions_total", Help: "Text extraction attempts by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "text_extraction_duration_seconds",
			Help:      "Text extraction duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "document_searches_total", Help: "Document searches by outcome."},
		[]string{"outcome"},
	)
	orphansRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "orphan_objects_removed_total", Help: "Storage objects removed by the sweeper."},
	)

	// RateLimitAllowed counts requests let through by the limiter.
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	// RateLimitRejected counts requests rejected by the limiter.
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func init() {
	Registry.MustRegister(
		uploadsTotal,
		extractionsTotal,
		extractionDuration,
		searchesTotal,
		orphansRemoved,
		RateLimitAllowed,
		RateLimitRejected,
	)
}

// IncUpload records an upload outcome (completed, too_large, unauthenticated, storage_failed, metadata_failed, invalid).
func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records one extraction attempt.
func ObserveExtraction(kind string, ok bool, seconds float64) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	extractionsTotal.WithLabelValues(kind, outcome).Inc()
	if seconds < 0 {
		seconds = 0
	}
	extractionDuration.WithLabelValues(kind).Observe(seconds)
}

// IncSearch records a search outcome.
func IncSearch(outcome string) {
	searchesTotal.WithLabelValues(outcome).Inc()
}

// AddOrphansRemoved adds n to the sweeper counter.
func AddOrphansRemoved(n int) {
	if n > 0 {
		orphansRemoved.Add(float64(n))
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
