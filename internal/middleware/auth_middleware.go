package middleware

import (
	"context"

	"convo-relay/internal/domain/user"
	"convo-relay/internal/services"
	"convo-relay/internal/transport/httpdto"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.Identity, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := services.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(relay_errors.HTTPStatus(err),
				httpdto.NewErrorResponse(relay_errors.Message(err), relay_errors.Code(err)))
			return
		}

		ctx := services.WithIdentity(c.Request.Context(), identity)
		ctx = context.WithValue(ctx, logger.UserIdKey, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
