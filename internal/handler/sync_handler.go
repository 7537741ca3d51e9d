package handler

import (
	"net/http"
	"time"

	"convo-relay/internal/services"
	"convo-relay/internal/transport/httpdto"
	relay_errors "convo-relay/pkg/errors"

	"github.com/gin-gonic/gin"
)

// SyncHandler serves delta reads for clients catching up after a
// reconnect. Broadcasts are best-effort; these endpoints are authoritative.
type SyncHandler struct {
	service *services.SyncService
}

func NewSyncHandler(service *services.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

func (h *SyncHandler) Convos(c *gin.Context) {
	userID, since, ok := h.params(c)
	if !ok {
		return
	}

	convos, err := h.service.Convos(c.Request.Context(), userID, since)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConvos(convos)))
}

func (h *SyncHandler) Messages(c *gin.Context) {
	userID, since, ok := h.params(c)
	if !ok {
		return
	}

	msgs, err := h.service.Messages(c.Request.Context(), userID, since)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessages(msgs)))
}

func (h *SyncHandler) params(c *gin.Context) (string, time.Time, bool) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", relay_errors.CodeAuthorization))
		return "", time.Time{}, false
	}

	since, err := services.ParseSince(c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), relay_errors.CodeValidation))
		return "", time.Time{}, false
	}
	return identity.UserID, since, true
}
