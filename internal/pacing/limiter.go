package pacing

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter caps sends per second across all workers. A rate of zero means unlimited.
type RateLimiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

func NewRateLimiter(perSec float64) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSec), burstFor(perSec)),
	}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.RLock()
	limiter := r.limiter
	limit := limiter.Limit()
	r.mu.RUnlock()

	if limit == 0 {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

func (r *RateLimiter) SetRate(perSec float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetLimit(rate.Limit(perSec))
	r.limiter.SetBurst(burstFor(perSec))
}

// Rate returns the current cap in sends per second.
func (r *RateLimiter) Rate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(r.limiter.Limit())
}

// burst of one second's worth of sends, at least one so fractional rates still admit a send
func burstFor(perSec float64) int {
	if perSec <= 0 {
		return 0
	}
	return int(math.Max(1, math.Ceil(perSec)))
}
