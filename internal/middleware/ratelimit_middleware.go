package middleware

import (
	"context"
	"net/http"
	"strconv"

	"convo-relay/internal/redis"
	"convo-relay/internal/services"
	"convo-relay/internal/transport/httpdto"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

type SyncLimiter interface {
	AllowSync(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// SyncRateLimitMiddleware throttles the sync endpoints per user. It must run
// after AuthMiddleware. A limiter failure lets the request through.
func SyncRateLimitMiddleware(limiter SyncLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := services.IdentityFromContext(c.Request.Context())
		if !ok || limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowSync(c.Request.Context(), identity.UserID)
		if err != nil {
			logger.Warnf("sync rate limit check failed: %v", err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				httpdto.NewErrorResponse("sync rate limit exceeded", relay_errors.CodeRateLimited))
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
