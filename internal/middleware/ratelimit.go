package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/pkg/response"
)

// RateLimiter is a fixed-window counter per user kept in Redis.
type RateLimiter struct {
	redis  *redis.Client
	logger zerolog.Logger
}

func NewRateLimiter(redisClient *redis.Client, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{redis: redisClient, logger: logger.With().Str("component", "ratelimit").Logger()}
}

// Limit allows maxRequests per window for each authenticated user.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" || maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			rl.logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// TranslateLimit limits text translation and improvement calls per minute.
func (rl *RateLimiter) TranslateLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("translate", maxPerMin, time.Minute)
}

// DocumentLimit limits document uploads and (re)translations per hour.
func (rl *RateLimiter) DocumentLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("documents", maxPerHour, time.Hour)
}
