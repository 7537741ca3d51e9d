package main

import (
	"context"
	"log"
	"time"

	"convo-relay/config"
	"convo-relay/internal/handler"
	"convo-relay/internal/middleware"
	"convo-relay/internal/redis"
	"convo-relay/internal/repository"
	"convo-relay/internal/server"
	"convo-relay/internal/services"
	"convo-relay/internal/websocket"
	"convo-relay/pkg/database"
	"convo-relay/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()

	var (
		presence    websocket.Presence
		limiter     services.RateLimiter
		syncLimiter middleware.SyncLimiter
	)
	if cfg.RedisEnabled() {
		rdb, err := redis.Connect(ctx, redis.ConfigFrom(cfg))
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()

		presence = redis.NewPresenceStore(rdb, cfg.PresenceTTL)
		rl := redis.DefaultRateLimitConfig()
		rl.MessageLimit = cfg.MessageRateLimit
		rl.MessageWindow = cfg.MessageRateWindow
		rateLimiter := redis.NewRateLimiter(rdb, rl)
		limiter, syncLimiter = rateLimiter, rateLimiter
		l.Infof("Redis presence and rate limiting enabled at %s", redis.ConfigFrom(cfg).Addr())
	} else {
		l.Warnf("REDIS_HOST not set; presence and rate limiting disabled")
	}

	authService, err := services.NewAuthService(store, cfg)
	if err != nil {
		log.Fatalf("Failed to configure authentication: %v", err)
	}

	hub := websocket.NewHub(presence, websocket.NewEventLogger(l))
	router := services.NewEventRouter(
		services.NewConversationService(store),
		services.NewMessageService(store),
		services.NewReceiptService(store),
		services.NewBroadcastService(store, hub, l),
		limiter,
		l,
	)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		WebSocket:   websocket.NewHandler(authService, hub, router, cfg.CORSOrigins, websocket.NewEventLogger(l)),
		Sync:        handler.NewSyncHandler(services.NewSyncService(store)),
		Auth:        authService,
		SyncLimiter: syncLimiter,
		Store:       store,
		Hub:         hub,
	})

	if err := srv.Start(); err != nil {
		l.Errorf("Server stopped with error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.StateStore, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warnf("Using in-memory store; state is lost on restart and any token subject is accepted")
		return repository.NewMemoryStore(repository.WithAutoProvisionedUsers()), nil
	default:
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := database.ApplyRawMigrations(ctx, db, cfg.MigrationsDir); err != nil {
				db.Close()
				return nil, err
			}
		}
		return repository.NewPostgresStore(db), nil
	}
}
