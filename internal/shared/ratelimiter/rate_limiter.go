// Package ratelimiter throttles repeated requests from one client with a
// fixed-window counter kept in Redis, so every server instance shares it.
package ratelimiter

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Result struct {
	Allowed bool
	// RetryAfter is how long until the window resets. Zero when allowed.
	RetryAfter time.Duration
}

// RateLimiter allows limit requests per key within each interval.
type RateLimiter struct {
	client   redis.Cmdable
	prefix   string
	limit    int
	interval time.Duration
}

var _ Limiter = (*RateLimiter)(nil)

func NewRateLimiter(client redis.Cmdable, prefix string, limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   client,
		prefix:   prefix,
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := rl.prefix + ":" + key

	count, err := rl.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	// The first hit opens the window.
	if count == 1 {
		if err := rl.client.PExpire(ctx, k, rl.interval).Err(); err != nil {
			return Result{}, err
		}
	}
	if count <= int64(rl.limit) {
		return Result{Allowed: true}, nil
	}

	ttl, err := rl.client.PTTL(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	if ttl < 0 {
		// A crash between INCR and PEXPIRE left the counter without a window.
		if err := rl.client.PExpire(ctx, k, rl.interval).Err(); err != nil {
			return Result{}, err
		}
		ttl = rl.interval
	}
	return Result{Allowed: false, RetryAfter: ttl}, nil
}

// Middleware rejects clients over the limit with 429 and a Retry-After header.
// Requests are let through when the limiter itself fails.
func Middleware(l Limiter, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), name+":"+c.ClientIP())
		if err != nil {
			slog.Warn("rate limiter unavailable", "limiter", name, "error", err)
			c.Next()
			return
		}
		if !res.Allowed {
			slog.Warn("rate limit hit", "limiter", name, "remote_addr", c.ClientIP(), "retry_after", res.RetryAfter)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try again later"})
			return
		}
		c.Next()
	}
}
