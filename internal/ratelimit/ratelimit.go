// Package ratelimit throttles replies to the Messaging API and requests per
// LINE user. Buckets are golang.org/x/time/rate limiters.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter guards the channel's shared Messaging API quota.
type Limiter struct {
	bucket *rate.Limiter
}

// New allows perSecond calls on average with bursts of up to burst.
func New(burst, perSecond float64) *Limiter {
	return &Limiter{bucket: newBucket(burst, perSecond)}
}

// Fractional bursts round up; a bucket always holds at least one token.
func newBucket(burst, perSecond float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(math.Ceil(burst))))
}

// Allow takes a token without waiting.
func (l *Limiter) Allow() bool { return l.bucket.Allow() }

// Wait blocks until a token is free. It fails at once when ctx would expire
// before that.
func (l *Limiter) Wait(ctx context.Context) error { return l.bucket.Wait(ctx) }
