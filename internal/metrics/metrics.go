// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Location resolution
	LocationResolutionsTotal *prometheus.CounterVec

	// Processing lock
	ProcessingLockTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterUsers   prometheus.Gauge

	// LINE token verification
	TokenVerificationsTotal *prometheus.CounterVec
	SingleflightDedupTotal  *prometheus.CounterVec

	// Catalog snapshots
	SnapshotSyncTotal         *prometheus.CounterVec
	SnapshotLastSyncTimestamp prometheus.Gauge

	// Periodic gauges
	CatalogLocations  prometheus.Gauge
	ActiveUsers       prometheus.Gauge
	DatabaseSizeBytes prometheus.Gauge
	DroppedRemoteLogs prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weamind_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"event_type"}, // message, postback, follow, unfollow
		),

		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // invalid_signature, rate_limit, unauthorized, ...
		),

		LocationResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_location_resolutions_total",
				Help: "Location lookups by source and outcome",
			},
			[]string{"source", "outcome"}, // source: text, coordinates; outcome: resolved, ambiguous, ...
		),

		ProcessingLockTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_processing_lock_total",
				Help: "Processing lock attempts by result",
			},
			[]string{"result"}, // acquired, busy, error
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // user, global
		),

		RateLimiterUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weamind_rate_limiter_users",
				Help: "Users currently tracked by the per-user rate limiter",
			},
		),

		TokenVerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_token_verifications_total",
				Help: "LIFF token verifications by token kind and status",
			},
			[]string{"kind", "status"}, // kind: access, id; status: success, unauthorized, unavailable
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_singleflight_dedup_total",
				Help: "Requests that waited on an in-flight call instead of executing",
			},
			[]string{"module"},
		),

		SnapshotSyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weamind_snapshot_sync_total",
				Help: "Catalog snapshot sync attempts by status",
			},
			[]string{"status"}, // imported, unchanged, error
		),

		SnapshotLastSyncTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weamind_snapshot_last_sync_timestamp_seconds",
				Help: "Unix time of the last successful snapshot import",
			},
		),

		CatalogLocations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weamind_catalog_locations",
				Help: "Number of locations in the catalog",
			},
		),

		ActiveUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weamind_active_users",
				Help: "Users currently following the bot",
			},
		),

		DatabaseSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weamind_database_size_bytes",
				Help: "Size of the SQLite database file",
			},
		),

		DroppedRemoteLogs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weamind_dropped_remote_logs",
				Help: "Log records discarded by the remote log pipeline since start",
			},
		),
	}
}

// RecordWebhook records a webhook event
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordLocationResolution records the outcome of a location lookup.
func (m *Metrics) RecordLocationResolution(source, outcome string) {
	m.LocationResolutionsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordProcessingLock records a processing lock attempt.
func (m *Metrics) RecordProcessingLock(result string) {
	m.ProcessingLockTotal.WithLabelValues(result).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterUsers sets the number of tracked users.
func (m *Metrics) SetRateLimiterUsers(count int) {
	m.RateLimiterUsers.Set(float64(count))
}

// RecordTokenVerification records a LIFF token verification.
func (m *Metrics) RecordTokenVerification(kind, status string) {
	m.TokenVerificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// RecordSnapshotSync records a snapshot sync attempt. Successful imports also
// move the last-sync timestamp.
func (m *Metrics) RecordSnapshotSync(status string, unixTime int64) {
	m.SnapshotSyncTotal.WithLabelValues(status).Inc()
	if status == "imported" {
		m.SnapshotLastSyncTimestamp.Set(float64(unixTime))
	}
}

// SetStorageGauges updates catalog and database size gauges.
func (m *Metrics) SetStorageGauges(locations, activeUsers int, dbSizeBytes int64) {
	m.CatalogLocations.Set(float64(locations))
	m.ActiveUsers.Set(float64(activeUsers))
	m.DatabaseSizeBytes.Set(float64(dbSizeBytes))
}

// SetDroppedRemoteLogs updates the dropped remote log gauge.
func (m *Metrics) SetDroppedRemoteLogs(count uint64) {
	m.DroppedRemoteLogs.Set(float64(count))
}
