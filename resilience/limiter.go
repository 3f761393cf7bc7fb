package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiterConfig configures a token bucket. A zero Rate disables limiting.
type RateLimiterConfig struct {
	// Rate is the refill rate in tokens per second.
	Rate float64 `yaml:"rate" mapstructure:"rate"`
	// Burst is the bucket size. Defaults to Rate rounded up.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// Enabled reports whether the config limits anything.
func (c RateLimiterConfig) Enabled() bool { return c.Rate > 0 }

// Validate checks the configuration.
func (c *RateLimiterConfig) Validate() error {
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative (got: %v)", c.Rate)
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must not be negative (got: %d)", c.Burst)
	}
	return nil
}

// RateLimiter is a token bucket. It is safe for concurrent use.
type RateLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, time.Now)
}

func newRateLimiter(cfg RateLimiterConfig, now func() time.Time) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	burst := float64(cfg.Burst)
	if burst <= 0 {
		burst = float64(int(cfg.Rate + 0.999))
	}
	return &RateLimiter{
		rate:       cfg.Rate,
		burst:      burst,
		now:        now,
		tokens:     burst,
		lastRefill: now(),
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.refill()
	rl.tokens--
	deficit := -rl.tokens
	rl.mu.Unlock()

	if deficit <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(deficit / rl.rate * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		rl.mu.Lock()
		rl.tokens++
		rl.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	rl.lastRefill = now
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
}
