package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"creator_collab/internal/config"
	"creator_collab/internal/domain"
	"creator_collab/internal/handler"
	"creator_collab/internal/hub"
	"creator_collab/internal/middleware"
	"creator_collab/internal/repository"
	"creator_collab/internal/service"
	"creator_collab/internal/storage"
	"creator_collab/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	rdb := connectRedis(cfg, appLogger)
	if rdb != nil {
		defer rdb.Close()
	}

	repos, closeStorage := openStorage(cfg, rdb, appLogger)
	defer closeStorage()

	files, err := storage.NewLocalStore(cfg.Upload, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to prepare upload directory", "error", err)
	}

	services := service.NewServices(repos, files, cfg, appLogger)

	registry := hub.NewRegistry(appLogger)
	router := hub.NewRouter(registry, services, hub.RouterConfig{
		SendBuffer: cfg.Socket.SendBuffer,
		OpTimeout:  cfg.Storage.OpTimeout,
		SendRule: domain.RateLimitRule{
			Scope:  domain.RateLimitScopeSend,
			Limit:  cfg.RateLimit.SendPerMinute,
			Window: time.Minute,
		},
	}, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Identity, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, domain.RateLimitRule{
		Scope:  domain.RateLimitScopeUser,
		Limit:  cfg.RateLimit.HTTPPerMinute,
		Window: time.Minute,
	}, appLogger)

	handlers := handler.NewHandlers(services, router, cfg, appLogger)

	engine := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	router.Close()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

// connectRedis returns nil when rate limiting is disabled or Redis is
// unreachable. Limits then fail open.
func connectRedis(cfg *config.Config, log logger.Logger) *redis.Client {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, rate limiting disabled", "addr", cfg.Redis.Addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	log.Info("Redis connection established")
	return rdb
}

func openStorage(cfg *config.Config, rdb *redis.Client, log logger.Logger) (*repository.Repositories, func()) {
	switch cfg.Storage.Driver {
	case config.StorageDriverBadger:
		db, err := repository.OpenBadger(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			log.Fatal("Failed to open badger", "error", err)
		}
		log.Info("Badger store opened", "path", cfg.Badger.Path, "in_memory", cfg.Badger.InMemory)
		return repository.NewBadgerRepositories(db, rdb, log), closer(db, log)

	default:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			log.Fatal("Invalid database DSN", "error", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
		poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Fatal("Failed to ping database", "error", err)
		}
		log.Info("Database connection established")

		if cfg.Database.AutoMigrate {
			if err := repository.Migrate(ctx, dbPool, log); err != nil {
				log.Fatal("Failed to apply migrations", "error", err)
			}
		}
		return repository.NewRepositories(dbPool, rdb, log), dbPool.Close
	}
}

func closer(c io.Closer, log logger.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", handlers.WebSocket.Connect)

	// Uploaded files are served directly when the public URL is local.
	if strings.HasPrefix(cfg.Upload.BaseURL, "/") {
		router.Static(cfg.Upload.BaseURL, cfg.Upload.Dir)
	}

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth(), rateLimitMiddleware.Limit())
	{
		me := v1.Group("/me")
		{
			me.GET("/rooms", handlers.Room.ListMine)
			me.GET("/unread-count", handlers.Room.UnreadCount)
		}

		v1.GET("/search/rooms", handlers.Room.Search)

		rooms := v1.Group("/rooms")
		{
			rooms.POST("", handlers.Room.Create)
			rooms.GET("/:roomId", handlers.Room.Get)
			rooms.POST("/:roomId/join", handlers.Room.Join)
			rooms.POST("/:roomId/leave", handlers.Room.Leave)
			rooms.PUT("/:roomId/settings", handlers.Room.UpdateSettings)
			rooms.PUT("/:roomId/members/:userId/role", handlers.Room.SetMemberRole)
			rooms.POST("/:roomId/read", handlers.Room.MarkAllRead)

			rooms.GET("/:roomId/messages", handlers.Message.List)
			rooms.POST("/:roomId/messages", handlers.Message.Post)
			rooms.GET("/:roomId/messages/search", handlers.Message.Search)

			rooms.POST("/:roomId/files", handlers.File.Upload)
			rooms.GET("/:roomId/files", handlers.File.List)
			rooms.DELETE("/:roomId/files/:filename", handlers.File.Delete)
		}

		messages := v1.Group("/messages")
		{
			messages.GET("/:messageId", handlers.Message.Get)
			messages.PUT("/:messageId", handlers.Message.Edit)
			messages.DELETE("/:messageId", handlers.Message.Delete)
			messages.POST("/:messageId/reactions", handlers.Message.React)
			messages.DELETE("/:messageId/reactions", handlers.Message.Unreact)
			messages.POST("/:messageId/read", handlers.Message.MarkRead)
		}
	}

	return router
}
