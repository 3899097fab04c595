package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"visitguard/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis     *redis.Client
	Requests  int           // Number of requests allowed
	Window    time.Duration // Time window
	KeyPrefix string        // Redis key prefix
	SkipPaths []string      // Paths to skip rate limiting
}

// RateLimitStrategy defines different rate limiting strategies
type RateLimitStrategy string

const (
	StrategyIP       RateLimitStrategy = "ip"
	StrategyUserOrIP RateLimitStrategy = "user_or_ip"
)

// RateLimiter is a sliding-window limiter backed by a Redis sorted set per key.
type RateLimiter struct {
	config   RateLimitConfig
	strategy RateLimitStrategy
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig, strategy RateLimitStrategy) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.Requests <= 0 {
		config.Requests = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		config:   config,
		strategy: strategy,
	}
}

// Middleware returns the rate limiting middleware. Requests pass through when
// Redis is unavailable.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.config.Redis == nil || rl.shouldSkipPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := rl.getKey(c)

		allowed, resetTime, remaining, err := rl.Allow(c.Request.Context(), key, time.Now())
		if err != nil {
			logrus.Errorf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetTime).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			logrus.WithFields(logrus.Fields{
				"client_ip": c.ClientIP(),
				"user_id":   c.GetString("userID"),
				"path":      c.Request.URL.Path,
				"method":    c.Request.Method,
			}).Warn("Rate limit exceeded")

			utils.RateLimitResponse(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// Allow records one request for key at now and reports whether it fits the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, time.Time, int, error) {
	window := rl.config.Window
	member := fmt.Sprintf("%d-%s", now.UnixNano(), utils.GenerateUUID())

	pipe := rl.config.Redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, time.Time{}, 0, err
	}

	// Count before this request was added
	currentCount := countCmd.Val()

	remaining := rl.config.Requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	resetTime := now.Add(window)

	allowed := currentCount < int64(rl.config.Requests)
	if !allowed {
		rl.config.Redis.ZRem(ctx, key, member)
	}

	return allowed, resetTime, remaining, nil
}

func (rl *RateLimiter) getKey(c *gin.Context) string {
	prefix := rl.config.KeyPrefix

	if rl.strategy == StrategyUserOrIP {
		if userID := c.GetString("userID"); userID != "" {
			return fmt.Sprintf("%s:user:%s", prefix, userID)
		}
	}
	return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())
}

func (rl *RateLimiter) shouldSkipPath(path string) bool {
	for _, skipPath := range rl.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// PublicRateLimit throttles anonymous link holders per IP.
func PublicRateLimit(client *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:     client,
		Requests:  requests,
		Window:    window,
		KeyPrefix: "visitguard:rate_limit:public",
	}, StrategyIP)
	return limiter.Middleware()
}

// APIRateLimit throttles authenticated clients per user.
func APIRateLimit(client *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:     client,
		Requests:  requests,
		Window:    window,
		KeyPrefix: "visitguard:rate_limit:api",
		SkipPaths: []string{"/health"},
	}, StrategyUserOrIP)
	return limiter.Middleware()
}
