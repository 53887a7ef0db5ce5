package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// ServerMode requires LINE credentials for the webhook server.
	ServerMode ValidationMode = iota
	// PublishMode requires R2 credentials for the catalog publisher.
	PublishMode
)

// Config holds all application configuration
type Config struct {
	// LINE Configuration
	LineChannelToken   string
	LineChannelSecret  string
	LineLoginChannelID string // LIFF login channel, audience of LIFF tokens

	// IDTokenVerifySignature checks LIFF ID token signatures against LINE's JWKS.
	// Disable only for local development.
	IDTokenVerifySignature bool

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	BaseURL         string // Public origin serving the LIFF and static pages

	// Data Configuration
	DataDir           string
	AnnouncementsPath string
	ForecastRetention time.Duration // Forecast windows that ended earlier than this are deleted daily

	// Processing lock (empty URL disables the lock)
	RedisURL string

	// R2 Snapshot Configuration
	R2Enabled              bool
	R2AccountID            string
	R2AccessKeyID          string
	R2SecretAccessKey      string
	R2BucketName           string
	R2SnapshotKey          string
	R2SnapshotPollInterval time.Duration

	// Sentry Configuration
	SentryEnabled          bool
	SentryDSN              string
	SentryEnvironment      string
	SentryRelease          string
	SentrySampleRate       float64
	SentryTracesSampleRate float64

	// Better Stack Configuration
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string

	Bot BotConfig
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables and validates it for mode.
// A .env file in the working directory is loaded first when present.
func LoadForMode(mode ValidationMode) (*Config, error) {
	_ = godotenv.Load()

	bot := DefaultBotConfig()
	bot.WebhookTimeout = getDurationEnv(EnvWebhookTimeout, bot.WebhookTimeout)
	bot.UserRateBurst = getFloatEnv(EnvUserRateBurst, bot.UserRateBurst)
	bot.UserRateRefill = getFloatEnv(EnvUserRateRefill, bot.UserRateRefill)
	bot.GlobalRateLimitRPS = getFloatEnv(EnvGlobalRateRPS, bot.GlobalRateLimitRPS)
	bot.ProcessingLockTTL = getDurationEnv(EnvProcessingLockTTL, bot.ProcessingLockTTL)

	dataDir := getEnv(EnvDataDir, getDefaultDataDir())

	cfg := &Config{
		LineChannelToken:   getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret:  getEnv(EnvLineChannelSecret, ""),
		LineLoginChannelID: getEnv(EnvLineLoginChannelID, ""),

		IDTokenVerifySignature: getBoolEnv(EnvIDTokenVerifySignature, true),

		Port:            getEnv(EnvPort, DefaultPort),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		BaseURL:         strings.TrimRight(getEnv(EnvBaseURL, "https://api.kyomind.tw"), "/"),

		DataDir:           dataDir,
		AnnouncementsPath: getEnv(EnvAnnouncementsPath, filepath.Join(dataDir, "announcements.json")),
		ForecastRetention: getDurationEnv(EnvForecastRetention, 48*time.Hour),

		RedisURL: getEnv(EnvRedisURL, ""),

		R2Enabled:              getBoolEnv(EnvR2Enabled, false),
		R2AccountID:            getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:          getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey:      getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:           getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:          getEnv(EnvR2SnapshotKey, "snapshots/catalog.db.zst"),
		R2SnapshotPollInterval: getDurationEnv(EnvR2SnapshotPollInterval, 15*time.Minute),

		SentryEnabled:          getBoolEnv(EnvSentryEnabled, false),
		SentryDSN:              getEnv(EnvSentryDSN, ""),
		SentryEnvironment:      getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:          getEnv(EnvSentryRelease, ""),
		SentrySampleRate:       getFloatEnv(EnvSentrySampleRate, 1.0),
		SentryTracesSampleRate: getFloatEnv(EnvSentryTracesSampleRate, 0.0),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),

		Bot: bot,
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks server mode requirements.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks that the settings required by mode are present and sane.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	switch mode {
	case ServerMode:
		if c.LineChannelToken == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
		}
		if c.LineChannelSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
		}
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if err := c.Bot.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bot config: %w", err))
		}
		if c.ForecastRetention <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvForecastRetention, c.ForecastRetention))
		}
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL: %w", EnvBaseURL, err))
		}
	case PublishMode:
		if !c.R2Enabled {
			errs = append(errs, fmt.Errorf("%s must be true to publish snapshots", EnvR2Enabled))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown validation mode %d", mode))
	}

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}

	if c.R2Enabled {
		for env, v := range map[string]string{
			EnvR2AccountID:       c.R2AccountID,
			EnvR2AccessKeyID:     c.R2AccessKeyID,
			EnvR2SecretAccessKey: c.R2SecretAccessKey,
			EnvR2BucketName:      c.R2BucketName,
			EnvR2SnapshotKey:     c.R2SnapshotKey,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s is required when R2 is enabled", env))
			}
		}
		if c.R2SnapshotPollInterval <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvR2SnapshotPollInterval, c.R2SnapshotPollInterval))
		}
	}

	if c.SentryEnabled && c.SentryDSN == "" {
		errs = append(errs, fmt.Errorf("%s is required when Sentry is enabled", EnvSentryDSN))
	}
	if c.BetterStackEnabled && c.BetterStackToken == "" {
		errs = append(errs, fmt.Errorf("%s is required when Better Stack is enabled", EnvBetterStackToken))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, fmt.Errorf("%s is required when metrics auth is enabled", EnvMetricsPassword))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "weamind.db")
}

// ProcessingLockEnabled reports whether a Redis server is configured.
func (c *Config) ProcessingLockEnabled() bool {
	return c.RedisURL != ""
}

// LIFFLocationURL is the page users open to set their home and work locations.
func (c *Config) LIFFLocationURL() string {
	return c.BaseURL + "/static/liff/location/index.html"
}

// AnnouncementsPageURL is the full announcement list linked from announcement bubbles.
func (c *Config) AnnouncementsPageURL() string {
	return c.BaseURL + "/static/announcements/index.html"
}
