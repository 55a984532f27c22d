// internal/api/middleware.go
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/BookFlow/internal/utils"
)

const requestIDKey = "request_id"

// RequestID tags each request with an id, reusing X-Request-ID when supplied.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	remaining int
	reset     time.Time
}

// NewRateLimiter starts a limiter that forgets expired windows every hour.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go rl.cleanup(time.Hour)
	return rl
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, v := range rl.visitors {
				if now.After(v.reset) {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Allow consumes one request for key and returns whether it fits the window,
// plus the remaining budget and the window reset time.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[key]
	if !ok || now.After(v.reset) {
		v = &visitor{remaining: limit, reset: now.Add(window)}
		rl.visitors[key] = v
	}
	if v.remaining <= 0 {
		return false, 0, v.reset
	}
	v.remaining--
	return true, v.remaining, v.reset
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// RateLimit rejects requests over limit per window for the key chosen by keyFunc.
func RateLimit(rl *RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, reset := rl.Allow(keyFunc(c), limit, window)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, &APIResponse{
				Success:   false,
				Error:     &APIError{Code: ErrorRateLimitExceeded, Message: "Rate limit exceeded"},
				Timestamp: time.Now(),
				RequestID: requestID(c),
			})
			return
		}
		c.Next()
	}
}

// ByClientIP keys rate limits on the client address.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUser keys rate limits on the authenticated username, falling back to the client address.
func ByUser(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return "user:" + id.Username
	}
	return c.ClientIP()
}
