package middleware

import (
	"convo-relay/internal/transport/httpdto"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.WithContext(c.Request.Context()).Error("request error",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		c.JSON(relay_errors.HTTPStatus(err), httpdto.NewErrorResponse(relay_errors.Message(err), relay_errors.Code(err)))
	}
}
