package webserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter allows rate requests per key in any sliding window.
type RateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	rate      int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(now)
	}

	recent := rl.prune(rl.requests[key], now)
	if len(recent) >= rl.rate {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) prune(times []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(times) && now.Sub(times[i]) >= rl.window {
		i++
	}
	return times[i:]
}

// sweep drops keys with no request inside the window.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, times := range rl.requests {
		if recent := rl.prune(times, now); len(recent) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = recent
		}
	}
	rl.lastSweep = now
}

// RateLimitMiddleware keys requests by the authenticated caller when an
// earlier middleware set one, and by client IP otherwise.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(callerKey)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"err": fmt.Sprintf("rate limit exceeded: %d requests per %v", limiter.rate, limiter.window),
			})
			return
		}
		c.Next()
	}
}
