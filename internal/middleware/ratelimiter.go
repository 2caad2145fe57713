package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client in fixed windows
type RateLimiter interface {
	// Allow records one request for key and reports whether it is within
	// the limit, along with the count so far in the current window.
	Allow(ctx context.Context, key string) (bool, int64, error)

	// Limit returns the number of requests allowed per window
	Limit() int64
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRateLimiter creates a Redis-backed limiter allowing limit requests per
// window. The client is owned by the caller.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration, logger *slog.Logger) RateLimiter {
	logger.Info("✅ [RateLimiter] Using Redis rate limiter", "limit", limit, "window", window)
	return &redisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: logger,
	}
}

// windowKey generates the Redis key for the current window
// Format: rate:{key}:{windowStartUnix}
func (r *redisRateLimiter) windowKey(key string) string {
	start := r.now().UTC().Truncate(r.window).Unix()
	return fmt.Sprintf("rate:%s:%d", key, start)
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	if r.limit <= 0 {
		return true, 0, nil
	}

	redisKey := r.windowKey(key)

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("❌ [RateLimiter] Failed to increment request count", "error", err, "key", key)
		// On error, allow the request but report it
		return true, 0, err
	}

	count := incr.Val()
	return count <= r.limit, count, nil
}

func (r *redisRateLimiter) Limit() int64 {
	return r.limit
}

// NoOpRateLimiter is a rate limiter that always allows requests
// Used when Redis is not available
type NoOpRateLimiter struct{}

// NewNoOpRateLimiter creates a no-op rate limiter
func NewNoOpRateLimiter(logger *slog.Logger) RateLimiter {
	logger.Warn("⚠️ [RateLimiter] Using no-op rate limiter - rate limiting is disabled")
	return &NoOpRateLimiter{}
}

func (r *NoOpRateLimiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	return true, 0, nil
}

func (r *NoOpRateLimiter) Limit() int64 {
	return 0
}

// RateLimit rejects clients exceeding the limiter's budget with 429
func RateLimit(limiter RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, count, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}

		if limit := limiter.Limit(); limit > 0 {
			remaining := limit - count
			if remaining < 0 {
				remaining = 0
			}
			c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		}

		if !allowed {
			logger.Warn("⚠️ [RateLimiter] Rate limit exceeded", "client_ip", c.ClientIP(), "count", count)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later."})
			return
		}

		c.Next()
	}
}
