// Package config loads WeaMind settings from WEAMIND_* environment variables
// and holds the fixed timeouts and schedules shared across packages.
//
// LINE expects the webhook to answer 200 OK quickly and the reply token is only
// good for about a minute. A weather reply is a few SQLite reads, so every
// event budget below sits well inside that window.
package config

import "time"

// Inbound HTTP. WebhookHTTPWrite must exceed WebhookProcessing.
const (
	WebhookProcessing = 25 * time.Second // one webhook event, handler to reply
	WebhookHTTPRead   = 10 * time.Second
	WebhookHTTPWrite  = 30 * time.Second
	WebhookHTTPIdle   = 120 * time.Second
	GracefulShutdown  = 30 * time.Second
)

// Calls out of the process.
const (
	// LINEAPIRequest bounds LIFF token verification against api.line.me.
	LINEAPIRequest = 10 * time.Second
	// JWKSCacheTTL is how long LINE ID token signing keys are trusted.
	JWKSCacheTTL = 24 * time.Hour
	// RedisOperation bounds one processing lock round trip. A slow Redis
	// lets the event through rather than blocking the reply.
	RedisOperation = 2 * time.Second
	// SnapshotDownload bounds fetching and importing one catalog snapshot.
	SnapshotDownload = 5 * time.Minute
)

// SQLite. Snapshot imports hold the writer for a few seconds, which readers wait out.
const (
	DatabaseBusyTimeout     = 30 * time.Second
	DatabaseConnMaxLifetime = time.Hour
)

// Background jobs.
const (
	ForecastCleanupHour        = 4 // Asia/Taipei, daily
	MetricsUpdateInterval      = 5 * time.Minute
	RateLimiterCleanupInterval = 5 * time.Minute
)
