package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convo-relay/config"
	"convo-relay/internal/handler"
	"convo-relay/internal/middleware"
	"convo-relay/internal/transport/httpdto"
	"convo-relay/internal/websocket"
	"convo-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	hub        *websocket.Hub
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// Pinger reports whether the state store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	WebSocket   *websocket.Handler
	Sync        *handler.SyncHandler
	Auth        middleware.Authenticator
	SyncLimiter middleware.SyncLimiter // optional
	Store       Pinger
	Hub         *websocket.Hub
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(h *Handlers) {
	s.hub = h.Hub

	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		resp := httpdto.HealthResponse{Status: "healthy", Store: "ok"}
		if h.Hub != nil {
			resp.Connections = h.Hub.Count()
			resp.Users = h.Hub.UserCount()
		}
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Store = err.Error()
			c.JSON(http.StatusServiceUnavailable, httpdto.Response[httpdto.HealthResponse]{Data: resp, Error: "store unreachable", Code: "UNHEALTHY"})
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
	})

	s.engine.GET("/ws", h.WebSocket.Connect)

	syncChain := []gin.HandlerFunc{middleware.AuthMiddleware(h.Auth)}
	if h.SyncLimiter != nil {
		syncChain = append(syncChain, middleware.SyncRateLimitMiddleware(h.SyncLimiter))
	}
	s.engine.GET("/convos/sync", append(syncChain, h.Sync.Convos)...)
	s.engine.GET("/messages/sync", append(syncChain, h.Sync.Messages)...)
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	if s.hub != nil {
		s.hub.CloseAll()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
