package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/pkg/ratelimit"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
)

// RateLimit 按用户或来源 IP 限流，limit 为窗口内允许的请求数。
// 限流器本身出错时放行并记录日志。
func RateLimit(limiter ratelimit.Limiter, limit int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := GetUserID(c)
		id := ratelimit.Identifier(userID, c.GetHeader("X-Forwarded-For"), c.GetHeader("X-Real-IP"))

		res, err := limiter.Check(c.Request.Context(), id, limit)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("path", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", res.Reset.UTC().Format(time.RFC3339))

		if !res.Success {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			response.RateLimitError(c, fmt.Sprintf("Too many requests. Please try again in %d seconds.", res.RetryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}
