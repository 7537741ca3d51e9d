package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"convo-relay/internal/domain/user"
	"convo-relay/internal/events"
	"convo-relay/internal/services"
	"convo-relay/internal/transport/httpdto"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"
)

const eventTimeout = 15 * time.Second

// Authenticator resolves a bearer token to a verified identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.Identity, error)
}

// EventHandler processes one inbound frame for a connection.
type EventHandler interface {
	Handle(ctx context.Context, actor user.Identity, origin services.Connection, raw []byte) error
}

type Handler struct {
	auth     Authenticator
	hub      *Hub
	router   EventHandler
	upgrader websocket.Upgrader
	log      *EventLogger
}

func NewHandler(auth Authenticator, hub *Hub, router EventHandler, allowedOrigins []string, log *EventLogger) *Handler {
	if log == nil {
		log = NewEventLogger(nil)
	}
	return &Handler{
		auth:   auth,
		hub:    hub,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		return origin == "" || set[origin]
	}
}

// Connect authenticates, upgrades and then serves the connection until it
// closes. Frames are handled one at a time, fanout included.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = services.BearerToken(c.GetHeader("Authorization"))
	}

	identity, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(relay_errors.HTTPStatus(err), httpdto.NewErrorResponse(relay_errors.Message(err), relay_errors.Code(err)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", identity.UserID, "", zap.Error(err))
		return
	}

	client := NewClient(conn, identity.UserID)
	h.hub.Register(identity.UserID, client)
	h.log.Info("connected", identity.UserID, client.ID())

	defer func() {
		h.hub.Unregister(identity.UserID, client)
		_ = client.Close()
		h.log.Info("disconnected", identity.UserID, client.ID())
	}()

	hello, err := events.Encode(events.NewHelloFrame(identity.UserID))
	if err == nil {
		err = client.Send(hello)
	}
	if err != nil {
		h.log.Error("hello_failed", identity.UserID, client.ID(), err)
		return
	}

	go client.pingLoop()

	err = client.ReadLoop(func(frame []byte) {
		ctx, cancel := h.eventContext(identity)
		defer cancel()
		if err := h.router.Handle(ctx, identity, client, frame); err != nil {
			h.log.Warn("event_rejected", identity.UserID, client.ID(),
				zap.String("code", relay_errors.Code(err)), zap.Error(err))
		}
	})
	if err != nil {
		h.log.Warn("read_failed", identity.UserID, client.ID(), zap.Error(err))
	}
}

func (h *Handler) eventContext(identity user.Identity) (context.Context, context.CancelFunc) {
	ctx := context.WithValue(context.Background(), logger.RequestIdKey, uuid.NewString())
	ctx = context.WithValue(ctx, logger.UserIdKey, identity.UserID)
	ctx = services.WithIdentity(ctx, identity)
	return context.WithTimeout(ctx, eventTimeout)
}
