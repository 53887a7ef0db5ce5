// Package lock provides a short-lived per-user processing lock backed by Redis.
//
// The lock is fail-open: when Redis is unreachable or not configured,
// every acquisition succeeds and the request is processed.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
)

const keyPrefix = "processing:user:"

// setNXer is the subset of the Redis client the lock needs.
type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Connect parses a redis:// URL and verifies the server answers PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = config.RedisOperation
	opts.ReadTimeout = config.RedisOperation
	opts.WriteTimeout = config.RedisOperation

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, config.RedisOperation)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Locker acquires processing locks that expire on their own after ttl.
// There is no release; a second request inside the TTL window is rejected.
type Locker struct {
	client  setNXer
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates a Locker. A nil client disables locking. m may be nil.
func New(client setNXer, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *Locker {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &Locker{
		client:  client,
		ttl:     ttl,
		logger:  log.WithModule("lock"),
		metrics: m,
	}
}

// Enabled reports whether acquisitions actually reach Redis.
func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// TryAcquire sets key with SET NX EX. It returns false only when the key is
// already held; a disabled lock, an empty key or a Redis error returns true.
func (l *Locker) TryAcquire(ctx context.Context, key string) bool {
	if !l.Enabled() || key == "" {
		return true
	}

	opCtx, cancel := context.WithTimeout(ctx, config.RedisOperation)
	defer cancel()

	acquired, err := l.client.SetNX(opCtx, key, "1", l.ttl).Result()
	if err != nil {
		l.logger.WithError(err).WarnContext(ctx, "Processing lock unavailable, allowing request")
		l.record("error")
		return true
	}
	if !acquired {
		l.logger.DebugContext(ctx, "Processing lock busy")
		l.record("busy")
		return false
	}
	l.record("acquired")
	return true
}

func (l *Locker) record(result string) {
	if l.metrics != nil {
		l.metrics.RecordProcessingLock(result)
	}
}

// ActorKey returns the lock key for a LINE user, or "" when the user is unknown.
func ActorKey(userID string) string {
	if userID == "" {
		return ""
	}
	return keyPrefix + userID
}
