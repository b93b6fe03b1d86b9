package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/primepos-supervisor/errors"
)

const (
	rateWindow = time.Minute
	pruneEvery = 5 * time.Minute
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests per key in any
	// one-minute window. Defaults to 60.
	RequestsPerMinute int
	// KeyFunc extracts the rate limit key from a request. Defaults to
	// ClientPathKey.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a Gin middleware that applies per-key sliding-window rate
// limiting. Rejected requests get 429 with a Retry-After header and a
// RATE_LIMITED error body. Idle keys are pruned in the background until ctx
// is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientPathKey
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)
	go rl.cleanup(ctx, pruneEvery)

	return func(c *gin.Context) {
		wait, ok := rl.allow(cfg.KeyFunc(c), time.Now())
		if !ok {
			appErr := apperrors.RateLimited(wait)
			c.Header("Retry-After", strconv.Itoa(appErr.Details["retry_after_seconds"].(int)))
			_ = c.Error(appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

// ClientPathKey limits each client per request path, so restarting one app
// does not use up the budget for another.
func ClientPathKey(c *gin.Context) string {
	return c.ClientIP() + " " + c.Request.URL.Path
}

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{requests: make(map[string][]time.Time), limit: limit}
}

// allow records a request at now. When the key is over its limit it returns
// how long until the oldest request leaves the window.
func (rl *rateLimiter) allow(key string, now time.Time) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := filterByTime(rl.requests[key], now.Add(-rateWindow))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return valid[0].Add(rateWindow).Sub(now), false
	}
	rl.requests[key] = append(valid, now)
	return 0, true
}

// cleanup prunes keys with no request in the window every interval until
// ctx is done.
func (rl *rateLimiter) cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.prune(now)
		}
	}
}

func (rl *rateLimiter) prune(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := now.Add(-rateWindow)
	for key, times := range rl.requests {
		valid := filterByTime(times, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func (rl *rateLimiter) keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

// filterByTime drops timestamps at or before cutoff. times is ordered.
func filterByTime(times []time.Time, cutoff time.Time) []time.Time {
	for i, t := range times {
		if t.After(cutoff) {
			return times[i:]
		}
	}
	return nil
}
