package middleware

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"libraryconnect.chat/pkg/response"
)

// Limiter is implemented by repository.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit throttles by user id when authenticated, otherwise by client ip.
// A failing limiter lets requests through.
func RateLimit(limiter Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid := GetUserID(c); uid != 0 {
			key = "user:" + strconv.FormatInt(uid, 10)
		}

		ok, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		if !ok {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
