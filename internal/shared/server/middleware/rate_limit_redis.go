package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tcontas-backend/internal/shared/metrics"
	"tcontas-backend/internal/shared/server/respond"
	"tcontas-backend/internal/shared/util"
)

// RedisRateLimit is a fixed-window limiter shared across API replicas.
// Each principal may make floor(rps*window)+burst requests per window.
func RedisRateLimit(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimit(RateLimitConfig{Rules: map[string]RateLimitRule{
			defaultRateLimitGroup: {Rate: rps, Burst: burst},
		}})
	}
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowedPerWindow := int(rps*float64(windowSeconds)) + burst
	return func(c *gin.Context) {
		bucket := time.Now().Unix() / int64(windowSeconds)
		redisKey := fmt.Sprintf("rl:%s:%d", util.HashKey(principalKey(c)), bucket)

		ctx := c.Request.Context()
		cnt, err := client.Incr(ctx, redisKey).Result()
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "rate limit check failed", nil)
			return
		}
		if cnt == 1 {
			_ = client.Expire(ctx, redisKey, time.Duration(windowSeconds+1)*time.Second).Err()
		}
		if int(cnt) > allowedPerWindow {
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.Header("Retry-After", fmt.Sprintf("%d", windowSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":        "rate_limited",
				"retryAfterMs": windowSeconds * 1000,
			})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
