package ratelimit

import (
	"time"

	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/shard"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g. "ai").
	Name string

	// Token bucket settings
	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// Optional rolling 24h limit (0 = disabled).
	DailyLimit int

	// How often idle keys are dropped.
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Metrics *metrics.Metrics

	now func() time.Time
}

// KeyedLimiter applies a token bucket plus an optional daily sliding window per
// user id. Keys whose bucket is full and whose daily window is empty are
// dropped by a background cleanup loop; call Stop to end it.
type KeyedLimiter struct {
	entries  *shard.Map[keyedEntry]
	config   KeyedConfig
	onDrop   func()
	onUpdate func(count int)
	stopCh   chan struct{}
}

type keyedEntry struct {
	limiter *Limiter
	daily   *SlidingWindowCounter
}

// NewKeyedLimiter creates a new per-user rate limiter.
//
// Example:
//
//	quota := NewKeyedLimiter(KeyedConfig{
//	    Name:          "ai",
//	    Burst:         20,
//	    RefillRate:    20.0 / 3600, // 20 per hour
//	    DailyLimit:    100,
//	    CleanupPeriod: 10 * time.Minute,
//	})
//	defer quota.Stop()
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}

	kl := &KeyedLimiter{
		config: cfg,
		stopCh: make(chan struct{}),
	}
	kl.entries = shard.New(shard.DefaultShards, func() keyedEntry {
		return keyedEntry{
			limiter: newWithClock(cfg.Burst, cfg.RefillRate, cfg.now),
			daily:   newSlidingWindowCounter(cfg.DailyLimit, 24*time.Hour, cfg.now),
		}
	})

	if cfg.Metrics != nil {
		kl.onDrop = func() {
			cfg.Metrics.RecordRateLimiterDrop(cfg.Name)
		}
		kl.onUpdate = func(count int) {
			cfg.Metrics.SetRateLimiterUsers(cfg.Name, count)
		}
	}

	go kl.cleanupLoop()

	return kl
}

// Allow reports whether userID may make one more request and consumes quota
// from both layers if so. The check of both layers and the consumption happen
// under the user's entry lock, so concurrent calls cannot overspend.
func (kl *KeyedLimiter) Allow(userID int64) bool {
	allowed := false
	kl.entries.Update(userID, func(e *keyedEntry) {
		if !e.daily.Check() || !e.limiter.Check() {
			return
		}
		e.daily.Consume()
		e.limiter.Consume()
		allowed = true
	})

	if !allowed && kl.onDrop != nil {
		kl.onDrop()
	}
	return allowed
}

// Available returns the tokens left in userID's bucket.
func (kl *KeyedLimiter) Available(userID int64) float64 {
	e, ok := kl.entries.Load(userID)
	if !ok {
		return kl.config.Burst
	}
	return e.limiter.Available()
}

// DailyRemaining returns userID's remaining daily quota, or -1 when disabled.
func (kl *KeyedLimiter) DailyRemaining(userID int64) int {
	if kl.config.DailyLimit <= 0 {
		return -1
	}
	e, ok := kl.entries.Load(userID)
	if !ok {
		return kl.config.DailyLimit
	}
	return e.daily.Remaining()
}

// ActiveCount returns the number of tracked users.
func (kl *KeyedLimiter) ActiveCount() int {
	return kl.entries.Len()
}

// cleanup drops idle users and reports the remaining count.
func (kl *KeyedLimiter) cleanup() {
	kl.entries.Sweep(func(e *keyedEntry) bool {
		return e.limiter.IsFull() && e.daily.IsIdle()
	})
	if kl.onUpdate != nil {
		kl.onUpdate(kl.entries.Len())
	}
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	select {
	case <-kl.stopCh:
	default:
		close(kl.stopCh)
	}
}
