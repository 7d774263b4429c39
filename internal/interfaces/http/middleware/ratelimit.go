package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter implements a fixed-window in-memory rate limiter. State is per
// process; horizontal deployments get an effective limit of N * replicas,
// which is acceptable for an abuse brake.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateLimitWindow
	limit   int
	window  time.Duration
	done    chan struct{}
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
// per key and starts its cleanup goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*rateLimitWindow),
		limit:   limit,
		window:  window,
		done:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, w := range rl.clients {
				if now.Sub(w.windowStart) > rl.window {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Allow reports whether a request from the given key fits in the current
// window and consumes one slot if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, exists := rl.clients[key]
	if !exists || now.Sub(w.windowStart) >= rl.window {
		rl.clients[key] = &rateLimitWindow{count: 1, windowStart: now}
		return true
	}

	if w.count < rl.limit {
		w.count++
		return true
	}
	return false
}

// Stop terminates the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

// rateLimitedBody is the exact payload the frontend matches on when showing
// the slow-down notice. Do not reformat.
var rateLimitedBody = gin.H{"error": "Too many requests, please try again later."}

// RateLimit returns a rate limiting middleware keyed by client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, rateLimitedBody)
			return
		}
		c.Next()
	}
}
