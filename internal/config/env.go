package config

// DefaultPort is used when WEAMIND_PORT is unset.
const DefaultPort = "10000"

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required)
	EnvLineChannelAccessToken = "WEAMIND_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "WEAMIND_LINE_CHANNEL_SECRET"
	EnvLineLoginChannelID     = "WEAMIND_LINE_LOGIN_CHANNEL_ID"

	// LIFF
	EnvIDTokenVerifySignature = "WEAMIND_ID_TOKEN_VERIFY_SIGNATURE"

	// Server
	EnvPort            = "WEAMIND_PORT"
	EnvLogLevel        = "WEAMIND_LOG_LEVEL"
	EnvShutdownTimeout = "WEAMIND_SHUTDOWN_TIMEOUT"
	EnvBaseURL         = "WEAMIND_BASE_URL"

	// Data
	EnvDataDir           = "WEAMIND_DATA_DIR"
	EnvAnnouncementsPath = "WEAMIND_ANNOUNCEMENTS_PATH"
	EnvForecastRetention = "WEAMIND_FORECAST_RETENTION"

	// Webhook
	EnvWebhookTimeout = "WEAMIND_WEBHOOK_TIMEOUT"

	// Rate Limits
	EnvGlobalRateRPS  = "WEAMIND_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "WEAMIND_USER_RATE_BURST"
	EnvUserRateRefill = "WEAMIND_USER_RATE_REFILL"

	// Processing Lock
	EnvRedisURL          = "WEAMIND_REDIS_URL"
	EnvProcessingLockTTL = "WEAMIND_PROCESSING_LOCK_TTL"

	// R2 Snapshot Feature
	EnvR2Enabled              = "WEAMIND_R2_ENABLED"
	EnvR2AccountID            = "WEAMIND_R2_ACCOUNT_ID"
	EnvR2AccessKeyID          = "WEAMIND_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey      = "WEAMIND_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName           = "WEAMIND_R2_BUCKET_NAME"
	EnvR2SnapshotKey          = "WEAMIND_R2_SNAPSHOT_KEY"
	EnvR2SnapshotPollInterval = "WEAMIND_R2_SNAPSHOT_POLL_INTERVAL"

	// Sentry Feature
	EnvSentryEnabled          = "WEAMIND_SENTRY_ENABLED"
	EnvSentryDSN              = "WEAMIND_SENTRY_DSN"
	EnvSentryEnvironment      = "WEAMIND_SENTRY_ENVIRONMENT"
	EnvSentryRelease          = "WEAMIND_SENTRY_RELEASE"
	EnvSentrySampleRate       = "WEAMIND_SENTRY_SAMPLE_RATE"
	EnvSentryTracesSampleRate = "WEAMIND_SENTRY_TRACES_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled  = "WEAMIND_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "WEAMIND_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "WEAMIND_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "WEAMIND_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "WEAMIND_METRICS_USERNAME"
	EnvMetricsPassword    = "WEAMIND_METRICS_PASSWORD"
)
