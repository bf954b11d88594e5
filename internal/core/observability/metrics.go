package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var backendLabel atomic.Value

func init() {
	backendLabel.Store("engine")
}

// SetBackend sets the map backend label attached to query metrics.
func SetBackend(s string) {
	if s == "" {
		s = "engine"
	}
	backendLabel.Store(s)
}

func getBackend() string {
	if v := backendLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "engine"
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	conversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinate_conversion_failures_total",
			Help: "Coordinate conversions that fell back to their input.",
		},
		[]string{"op"},
	)

	interactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_interactions_total",
			Help: "Spatial query interactions by kind and outcome.",
		},
		[]string{"kind", "outcome", "backend"},
	)

	layerQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layer_queries_total",
			Help: "Per-layer feature queries by outcome.",
		},
		[]string{"outcome"},
	)

	featuresReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_features_returned",
			Help:    "Features returned per interaction after dedup.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"kind"},
	)

	highlightsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "highlight_graphics_active",
			Help: "Graphics currently tracked by highlight providers.",
		},
		[]string{"backend"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Query cache results by outcome.",
		},
		[]string{"outcome"},
	)

	redisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	selectionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_events_total",
			Help: "Selection events by outcome (queued, dropped, sent, failed).",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoview_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// Collectors returns the package collectors so they can also be exposed
// through a private registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		conversionFailures,
		interactions,
		layerQueries,
		featuresReturned,
		highlightsActive,
		cacheResults,
		redisOpDuration,
		selectionEvents,
		buildInfo,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncConversionFailure counts a recovered conversion failure for op
// (point, bbox, geometry).
func IncConversionFailure(op string) {
	conversionFailures.WithLabelValues(op).Inc()
}

// ObserveInteraction records one orchestrated query. outcome is one of
// applied, cleared, stale, failed, invalid or disabled.
func ObserveInteraction(kind, outcome string, features int) {
	interactions.WithLabelValues(kind, outcome, getBackend()).Inc()
	if outcome == "applied" {
		featuresReturned.WithLabelValues(kind).Observe(float64(features))
	}
}

func IncLayerQuery(outcome string) {
	layerQueries.WithLabelValues(outcome).Inc()
}

// AddHighlights adjusts the active graphics gauge by delta.
func AddHighlights(backend string, delta int) {
	highlightsActive.WithLabelValues(backend).Add(float64(delta))
}

func AddCacheHits(n int) {
	cacheResults.WithLabelValues("hit").Add(float64(n))
}

func AddCacheMisses(n int) {
	cacheResults.WithLabelValues("miss").Add(float64(n))
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	redisOpDuration.WithLabelValues(op, result).Observe(durationSeconds)
}

func IncSelectionEvent(outcome string) {
	selectionEvents.WithLabelValues(outcome).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
