package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerMinute = 120
	defaultMaxConcurrent     = 8
)

// ClientRateLimiter bounds how fast and how many requests at once a single
// WebSocket client may run against the store
type ClientRateLimiter struct {
	limiter *rate.Limiter

	mu            sync.Mutex
	maxConcurrent int
	inFlight      int
}

// NewClientRateLimiter creates a limiter with default limits
func NewClientRateLimiter() *ClientRateLimiter {
	return NewClientRateLimiterWithLimits(defaultRequestsPerMinute, defaultMaxConcurrent)
}

// NewClientRateLimiterWithLimits creates a limiter with custom limits. The
// full per-minute budget is available as a burst.
func NewClientRateLimiterWithLimits(requestsPerMinute, maxConcurrent int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		maxConcurrent: maxConcurrent,
	}
}

// Begin admits one request, returning the JSON-RPC code to reject it with
// when a limit is hit. End must be called for every admitted request.
func (r *ClientRateLimiter) Begin(now time.Time) (bool, int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight >= r.maxConcurrent {
		return false, TooManyConcurrent, "too many concurrent requests"
	}
	if !r.limiter.AllowN(now, 1) {
		return false, RateLimitExceeded, "rate limit exceeded"
	}
	r.inFlight++
	return true, 0, ""
}

// End releases a request admitted by Begin
func (r *ClientRateLimiter) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight > 0 {
		r.inFlight--
	}
}

// InFlight returns the number of admitted requests still running
func (r *ClientRateLimiter) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inFlight
}
