package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/garyellow/weamind-linebot-go/internal/metrics"
)

type KeyedConfig struct {
	Name       string // metrics label
	Burst      float64
	RefillRate float64 // tokens per second

	// SweepEvery forgets idle users periodically. Zero leaves it to the caller.
	SweepEvery time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter gives each LINE user a bucket of their own. A user whose
// bucket has refilled completely carries no state and is dropped by Sweep.
type KeyedLimiter struct {
	cfg KeyedConfig
	now func() time.Time

	mu    sync.Mutex
	users map[string]*rate.Limiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter starts the sweeper when cfg.SweepEvery is set; Stop ends it.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := &KeyedLimiter{
		cfg:   cfg,
		now:   time.Now,
		users: make(map[string]*rate.Limiter),
		stop:  make(chan struct{}),
	}
	if cfg.SweepEvery > 0 {
		go kl.sweepLoop()
	}
	return kl
}

// Allow spends one of userID's tokens. Events without a user are not limited.
func (kl *KeyedLimiter) Allow(userID string) bool {
	if userID == "" {
		return true
	}

	kl.mu.Lock()
	bucket, ok := kl.users[userID]
	if !ok {
		bucket = newBucket(kl.cfg.Burst, kl.cfg.RefillRate)
		kl.users[userID] = bucket
	}
	kl.mu.Unlock()

	if bucket.AllowN(kl.now(), 1) {
		return true
	}
	if kl.cfg.Metrics != nil {
		kl.cfg.Metrics.RecordRateLimiterDrop(kl.cfg.Name)
	}
	return false
}

// Tokens reports what userID may still spend. Unknown users have a full bucket.
func (kl *KeyedLimiter) Tokens(userID string) float64 {
	kl.mu.Lock()
	bucket, ok := kl.users[userID]
	kl.mu.Unlock()

	if !ok {
		return float64(newBucket(kl.cfg.Burst, kl.cfg.RefillRate).Burst())
	}
	return bucket.TokensAt(kl.now())
}

// Tracked returns how many users currently hold a bucket.
func (kl *KeyedLimiter) Tracked() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.users)
}

// Sweep forgets users with a full bucket and returns how many remain.
func (kl *KeyedLimiter) Sweep() int {
	now := kl.now()

	kl.mu.Lock()
	for userID, bucket := range kl.users {
		if bucket.TokensAt(now) >= float64(bucket.Burst()) {
			delete(kl.users, userID)
		}
	}
	remaining := len(kl.users)
	kl.mu.Unlock()

	if kl.cfg.Metrics != nil {
		kl.cfg.Metrics.SetRateLimiterUsers(remaining)
	}
	return remaining
}

func (kl *KeyedLimiter) sweepLoop() {
	ticker := time.NewTicker(kl.cfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stop:
			return
		case <-ticker.C:
			kl.Sweep()
		}
	}
}

// Stop ends the sweeper. It may be called more than once.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stop) })
}
