package config

import (
	"errors"
	"fmt"
	"time"
)

// LINE API limits: https://developers.line.biz/en/reference/messaging-api/
const (
	LINEMaxMessagesPerReply   = 5
	LINEMaxTextMessageLength  = 5000
	LINEMaxPostbackDataLength = 300
	LINEMaxQuickReplyItems    = 13
	LINEMaxCarouselBubbles    = 12
)

// BotConfig holds bot module configuration.
type BotConfig struct {
	WebhookTimeout      time.Duration
	MaxMessagesPerReply int
	MaxEventsPerWebhook int
	MaxMessageLength    int
	MaxPostbackDataSize int

	// Rate limits (token bucket)
	UserRateBurst      float64 // Maximum burst tokens per user
	UserRateRefill     float64 // Tokens refilled per second
	GlobalRateLimitRPS float64

	// ProcessingLockTTL is how long a user is blocked from repeating an expensive action.
	ProcessingLockTTL time.Duration

	// Weather module
	RecentQueriesLimit   int     // Quick reply items offered for recent queries
	ForecastWindows      int     // 3-hour windows rendered per forecast reply
	NearestMaxDistanceKm float64 // Farthest catalog location accepted for a map pin
}

// DefaultBotConfig returns default configuration values.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:      WebhookProcessing,
		MaxMessagesPerReply: LINEMaxMessagesPerReply,
		MaxEventsPerWebhook: 100,
		MaxMessageLength:    LINEMaxTextMessageLength,
		MaxPostbackDataSize: LINEMaxPostbackDataLength,

		UserRateBurst:      10.0,
		UserRateRefill:     0.5, // 1 token per 2s
		GlobalRateLimitRPS: 80.0,

		ProcessingLockTTL: time.Second,

		RecentQueriesLimit:   5,
		ForecastWindows:      4,
		NearestMaxDistanceKm: 50,
	}
}

// Validate checks if the configuration is valid.
func (c *BotConfig) Validate() error {
	var errs []error

	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout))
	}
	if c.MaxMessagesPerReply < 1 || c.MaxMessagesPerReply > LINEMaxMessagesPerReply {
		errs = append(errs, fmt.Errorf("max messages per reply must be 1-%d, got %d", LINEMaxMessagesPerReply, c.MaxMessagesPerReply))
	}
	if c.MaxEventsPerWebhook < 1 {
		errs = append(errs, fmt.Errorf("max events per webhook must be positive, got %d", c.MaxEventsPerWebhook))
	}
	if c.UserRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("user rate burst must be positive, got %f", c.UserRateBurst))
	}
	if c.UserRateRefill <= 0 {
		errs = append(errs, fmt.Errorf("user rate refill must be positive, got %f", c.UserRateRefill))
	}
	if c.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate limit RPS must be positive, got %f", c.GlobalRateLimitRPS))
	}
	if c.ProcessingLockTTL < time.Second {
		errs = append(errs, fmt.Errorf("processing lock TTL must be at least 1s, got %v", c.ProcessingLockTTL))
	}
	if c.RecentQueriesLimit < 1 || c.RecentQueriesLimit > LINEMaxQuickReplyItems {
		errs = append(errs, fmt.Errorf("recent queries limit must be 1-%d, got %d", LINEMaxQuickReplyItems, c.RecentQueriesLimit))
	}
	if c.ForecastWindows < 1 {
		errs = append(errs, fmt.Errorf("forecast windows must be positive, got %d", c.ForecastWindows))
	}
	if c.NearestMaxDistanceKm <= 0 {
		errs = append(errs, fmt.Errorf("nearest max distance must be positive, got %f", c.NearestMaxDistanceKm))
	}

	return errors.Join(errs...)
}
