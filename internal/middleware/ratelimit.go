package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type client struct {
	windowStart time.Time
	count       int
}

// RateLimiter allows up to limit requests per client IP in each fixed window.
// State is in memory and per process.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter returns a limiter; a non-positive window defaults to one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records one request from key and reports whether it is within the limit.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[key]
	if !ok || now.Sub(cl.windowStart) >= l.window {
		l.clients[key] = &client{windowStart: now, count: 1}
		l.evict(now)
		return l.limit > 0
	}
	cl.count++
	return cl.count <= l.limit
}

// evict drops clients whose window has expired. Caller holds mu.
func (l *RateLimiter) evict(now time.Time) {
	for k, cl := range l.clients {
		if now.Sub(cl.windowStart) >= l.window {
			delete(l.clients, k)
		}
	}
}

// Handler returns the Gin middleware. Rejected requests get HTTP 429.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			AbortWithError(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}
