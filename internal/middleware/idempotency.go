package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/timetable-lab/console-service/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	IdempotencyHeader = "X-Request-ID"
	IdempotencyTTL    = 10 * time.Minute
)

// Idempotency rejects replays of mutating requests that carry the same
// X-Request-ID. Browser retries of generate/apply/save must not run twice.
func Idempotency(cache *storage.RedisCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(IdempotencyHeader)
		if requestID == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "idempotency:" + requestID

		fresh, err := cache.SetNX(ctx, key, "processing", IdempotencyTTL)
		if err == nil && !fresh {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":      "Duplicate request",
				"request_id": requestID,
			})
			return
		}

		c.Next()

		_ = cache.SetJSON(ctx, key, "completed", IdempotencyTTL)
	}
}

// RateLimiter is a fixed-window per-client limiter backed by Redis.
func RateLimiter(cache *storage.RedisCache, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()
		ctx := c.Request.Context()

		count, err := cache.Incr(ctx, key, window)
		if err == nil && count > int64(maxRequests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		c.Next()
	}
}

// Timeout bounds a request so a stuck solver call cannot hold a handler open.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
			return
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
			})
		}
	}
}
