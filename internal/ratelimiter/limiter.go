package ratelimiter

import (
	"sync"

	"golang.org/x/time/rate"
)

// TenantLimiters holds one token bucket limiter per tenant, created lazily
// on first enqueue. Each limiter enforces a steady-state rate (e.g. 50
// tokens/sec). Burst is set equal to the rate so no extra burst capacity is
// allowed beyond the configured per-second maximum.
type TenantLimiters struct {
	mu         sync.Mutex
	ratePerSec int
	limiters   map[string]*rate.Limiter
}

// New creates a TenantLimiters with ratePerSec tokens per second per tenant.
func New(ratePerSec int) *TenantLimiters {
	return &TenantLimiters{
		ratePerSec: ratePerSec,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the tenant may enqueue another event right now.
// Non-blocking: the HTTP handler turns a false into a 429 instead of
// holding the producer's connection open.
func (tl *TenantLimiters) Allow(tenantID string) bool {
	tl.mu.Lock()
	limiter, ok := tl.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(tl.ratePerSec), tl.ratePerSec)
		tl.limiters[tenantID] = limiter
	}
	tl.mu.Unlock()

	return limiter.Allow()
}
