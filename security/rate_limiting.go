package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles registration traffic per caller using a fixed
// window counter in Redis.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// Allow counts a request against the caller's window and reports whether
// it is still within the limit. A Redis failure lets the request through;
// throttling is best effort.
func (r *RateLimiter) Allow(ctx context.Context, caller string) bool {
	key := fmt.Sprintf("ratelimit:join:%s", caller)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	return count <= int64(r.limit)
}

// IsSuspiciousUserAgent flags obvious automation patterns.
func IsSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
