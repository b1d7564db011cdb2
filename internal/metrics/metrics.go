// Package metrics holds the Prometheus collectors shared by the proxy.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded by the cache orchestrator.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeStale = "stale"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityexplorer_cache_lookups_total",
			Help: "Cache lookups by resource kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityexplorer_upstream_requests_total",
			Help: "Requests made to upstream data providers",
		},
		[]string{"provider", "code"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityexplorer_upstream_request_duration_seconds",
			Help:    "Latency of upstream provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityexplorer_store_write_errors_total",
			Help: "Failed best-effort inserts and deletes",
		},
		[]string{"kind"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityexplorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityexplorer_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

func RecordLookup(kind, outcome string) {
	CacheLookups.WithLabelValues(kind, outcome).Inc()
}

// RecordUpstream records one provider round trip. code is 0 when the request
// never produced a response.
func RecordUpstream(provider string, code int, elapsed time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	UpstreamRequests.WithLabelValues(provider, label).Inc()
	UpstreamDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func RecordStoreWriteError(kind string) {
	StoreWriteErrors.WithLabelValues(kind).Inc()
}

func RecordHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
