// Package telemetry holds logging setup, Prometheus collectors and error
// reporting. Collectors register against the default registry and are
// served on /metrics by the HTTP router.
package telemetry

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by chi route pattern rather than raw URL.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Moderation metrics.
var (
	ModerationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "File requests transitioned, labelled by audit action.",
		},
		[]string{"action"},
	)

	PointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_awarded_total",
		Help: "Reputation points written to the ledger.",
	})

	FileRequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "file_requests_created_total",
		Help: "File requests submitted by students.",
	})
)

var (
	AuditShipFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_ship_failures_total",
		Help: "Audit entries that at least one shipper failed to deliver.",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Uploader notifications that could not be sent.",
	})

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter, by route pattern.",
		},
		[]string{"path"},
	)

	CatalogCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Course lookups served from the LRU cache.",
	})

	CatalogCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Course lookups that went to the database.",
	})
)

var (
	DBOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Open connections in the database pool.",
	})

	DBInUseConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_in_use_connections",
		Help: "Connections currently in use.",
	})

	DBWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_wait_count",
		Help: "Total number of connections waited for.",
	})
)

// RecordDBStats copies pool statistics into the DB gauges.
func RecordDBStats(stats sql.DBStats) {
	DBOpenConnections.Set(float64(stats.OpenConnections))
	DBInUseConnections.Set(float64(stats.InUse))
	DBWaitCount.Set(float64(stats.WaitCount))
}
