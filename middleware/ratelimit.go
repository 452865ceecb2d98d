package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/utils"
)

// RateLimit enforces a fixed-window limit per client IP and endpoint,
// counted in Redis so all API instances share one budget. Redis errors
// fail open.
func RateLimit(cfg *config.Config, rdb *redis.Client) gin.HandlerFunc {
	window := time.Duration(cfg.RateLimitWindow) * time.Second

	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", c.ClientIP(), c.FullPath())

		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Warn("Rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(c.Request.Context(), key, window)
		}

		if count > int64(cfg.RateLimitReqs) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			utils.RespondWithError(c, http.StatusTooManyRequests, utils.CodeLLMRateLimited, "too many requests", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
