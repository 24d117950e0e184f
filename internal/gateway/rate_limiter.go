package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-client requests-per-minute budget on inbound
// RPC calls. A limiter is lazily created per client key and shares the same
// rpm/burst configuration.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rpm      int
	burst    int
}

// NewRateLimiter builds a RateLimiter. rpm<=0 disables rate limiting
// entirely (Allow always returns true) — this matches gateway.rate_limit_rpm
// semantics, where 0 or negative means "off".
func NewRateLimiter(rpm, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rpm:      rpm,
		burst:    burst,
	}
}

// Enabled reports whether rate limiting is active.
func (r *RateLimiter) Enabled() bool { return r.rpm > 0 }

// Allow reports whether the caller identified by key may proceed now,
// consuming one token from its per-minute budget if so.
func (r *RateLimiter) Allow(key string) bool {
	if !r.Enabled() {
		return true
	}

	r.mu.Lock()
	lim, ok := r.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(r.rpm)/60.0), r.burst)
		r.limiters[key] = lim
	}
	r.mu.Unlock()

	return lim.Allow()
}
