// Package metrics provides Prometheus metrics for cardvault.
// The server exposes them at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Auth Metrics
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_auth_events_total",
			Help: "Authentication events handled by the server",
		},
		[]string{"event", "result"}, // event: "signup", "signin", "refresh", "signout", "password"
	)

	SessionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_session_cache_lookups_total",
			Help: "Session cache lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss"
	)

	// Card Metrics
	CardWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_card_writes_total",
			Help: "Card inserts and deletes applied by the server",
		},
		[]string{"op", "result"},
	)

	ImageUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_image_uploads_total",
			Help: "Image uploads by result",
		},
		[]string{"bucket", "result"}, // "ok", "rejected", "conflict", "error"
	)

	ImageUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardvault_image_upload_bytes",
			Help:    "Size of accepted image uploads",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 6),
		},
	)

	// Collection Metrics (refreshed by the snapshot service)
	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_collection_cards_total",
			Help: "Total number of cards across all collections",
		},
	)

	CollectionValueGBP = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_collection_value_gbp",
			Help: "Total current value of all collections",
		},
	)

	CollectionCardsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardvault_collection_cards_by_status",
			Help: "Number of cards by status",
		},
		[]string{"status"},
	)

	SnapshotsTakenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_snapshots_taken_total",
			Help: "Daily value snapshots recorded, by result",
		},
		[]string{"result"},
	)

	// Client Store Metrics
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_store_operations_total",
			Help: "Collection store operations by outcome",
		},
		[]string{"op", "result"},
	)

	StoreRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_store_records",
			Help: "Cards currently held by the collection store",
		},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardvault_remote_request_duration_seconds",
			Help:    "Latency of record service calls made by the client",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)
