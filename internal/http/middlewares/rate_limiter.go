package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// buckets past this count trigger a sweep of expired windows
const sweepThreshold = 10000

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	count int
	ends  time.Time
}

func NewRateLimiter(limit int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  per,
		now:     time.Now,
		buckets: make(map[string]*window),
	}
}

// Allow counts one hit for key. When the window is exhausted it reports how
// long until the next one opens.
func (rl *RateLimiter) Allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.buckets) > sweepThreshold {
		for k, w := range rl.buckets {
			if now.After(w.ends) {
				delete(rl.buckets, k)
			}
		}
	}

	w, found := rl.buckets[key]
	if !found || now.After(w.ends) {
		w = &window{ends: now.Add(rl.window)}
		rl.buckets[key] = w
	}

	if w.count >= rl.limit {
		return 0, w.ends.Sub(now), false
	}
	w.count++
	return rl.limit - w.count, 0, true
}

// Limit applies the limiter to requests grouped by keyFn. An empty key falls
// back to the client IP.
func (rl *RateLimiter) Limit(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		remaining, retryAfter, ok := rl.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			secs := int((retryAfter + time.Second - 1) / time.Second)
			c.Header("Retry-After", strconv.Itoa(secs))
			abortWithError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}
		c.Next()
	}
}

// KeyByIP groups anonymous traffic such as the /auth routes.
func KeyByIP(c *gin.Context) string {
	return "ip:" + clientIP(c)
}

// KeyByUserOrIP groups authenticated traffic by account.
func KeyByUserOrIP(c *gin.Context) string {
	if id, ok := UserIDFromContext(c); ok {
		return "user:" + id
	}
	return KeyByIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if host, _, err := net.SplitHostPort(ip); err == nil && host != "" {
		return host
	}
	return ip
}
