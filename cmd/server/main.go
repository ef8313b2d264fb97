// Package main runs the live shopping HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bazaarlive/backend/config"
	"github.com/bazaarlive/backend/internal/analytics"
	"github.com/bazaarlive/backend/internal/auth"
	"github.com/bazaarlive/backend/internal/catalog"
	"github.com/bazaarlive/backend/internal/engagement"
	"github.com/bazaarlive/backend/internal/middleware"
	"github.com/bazaarlive/backend/internal/plans"
	"github.com/bazaarlive/backend/internal/presence"
	"github.com/bazaarlive/backend/internal/realtime"
	"github.com/bazaarlive/backend/internal/rtc"
	"github.com/bazaarlive/backend/internal/sessions"
	"github.com/bazaarlive/backend/internal/worker"
	"github.com/bazaarlive/backend/pkg/database"
	"github.com/bazaarlive/backend/pkg/queue"
	"github.com/bazaarlive/backend/pkg/redis"
	"github.com/bazaarlive/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Sessions and the concurrency gate
	planResolver := plans.NewResolver(plans.NewRepository(pool), cfg.Live.PremiumMaxConcurrent, logger)
	sessionRepo := sessions.NewRepository(pool)
	gate := sessions.NewGate(planResolver, sessionRepo, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	lifecycle := sessions.NewLifecycle(sessionRepo, gate, hub, jobQueue, logger)
	sessionHandler := sessions.NewHandler(lifecycle, logger)

	// Viewer presence
	dedupe := time.Duration(cfg.Live.JoinDedupeSec) * time.Second
	presenceTTL := time.Duration(cfg.Live.PresenceTTLSec) * time.Second
	tracker := presence.NewTracker(presence.NewRedisStore(rdb.Client), sessionRepo, hub, dedupe, presenceTTL, logger)
	presenceHandler := presence.NewHandler(tracker, sessionRepo)

	// Chat and reactions
	limiter := engagement.NewRedisRateLimiter(rdb.Client, cfg.Live.ReactionsPerMinute, time.Minute)
	engagementSvc := engagement.NewService(engagement.NewRepository(pool), hub, limiter, logger)
	engagementHandler := engagement.NewHandler(engagementSvc, cfg.Live.RecentMessages)

	// Featured products
	catalogSvc := catalog.NewService(catalog.NewRepository(pool), hub, cfg.Live.CatalogCap, logger)
	catalogHandler := catalog.NewHandler(catalogSvc)

	// RTC channel tokens
	var rtcHandler *rtc.Handler
	if provider, err := rtc.NewZego(cfg.Zego.AppID, cfg.Zego.ServerSecret, cfg.Zego.TokenExpireSec); err != nil {
		logger.Warn("rtc tokens disabled", zap.Error(err))
	} else {
		rtcHandler = rtc.NewHandler(lifecycle, provider, cfg.Zego.AppID, logger)
	}

	// Session summaries
	analyticsHandler := analytics.NewHandler(pool)

	// Finalize worker (presence purge after end) and stale-viewer sweeper
	finalizer := worker.NewSessionFinalizer(tracker, jobQueue, presenceTTL/3, logger)

	wsValidate := func(token string) (uuid.UUID, string, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", "", err
		}
		return claims.UserID, claims.Name, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		sellerOnly := middleware.RequireRole("seller", "admin")

		// Plans (admin)
		api.PUT("/users/:id/plan", middleware.RequireRole("admin"), authHandler.SetPlan)

		// Sessions
		api.POST("/lives", sellerOnly, sessionHandler.Schedule)
		api.GET("/lives", sessionHandler.List)
		api.GET("/lives/:id", sessionHandler.Get)
		api.POST("/lives/:id/start", sellerOnly, sessionHandler.Start)
		api.POST("/lives/:id/end", sellerOnly, sessionHandler.End)
		api.POST("/lives/:id/cancel", sellerOnly, sessionHandler.Cancel)
		api.DELETE("/lives/:id", sellerOnly, sessionHandler.Delete)
		api.POST("/sellers/me/lives/end-all", sellerOnly, sessionHandler.EndAll)
		api.DELETE("/sellers/me/lives", sellerOnly, sessionHandler.DeleteAll)

		// Presence (HTTP fallback; WebSocket clients join implicitly)
		api.POST("/lives/:id/join", presenceHandler.Join)
		api.POST("/lives/:id/leave", presenceHandler.Leave)

		// Chat and reactions
		api.POST("/lives/:id/messages", engagementHandler.PostMessage)
		api.GET("/lives/:id/messages", engagementHandler.ListMessages)
		api.POST("/lives/:id/reactions", engagementHandler.PostReaction)
		api.GET("/lives/:id/reactions", engagementHandler.ListReactions)

		// Featured products
		api.GET("/lives/:id/products", catalogHandler.List)
		api.POST("/lives/:id/products", sellerOnly, catalogHandler.Add)
		api.DELETE("/lives/:id/products/:productId", sellerOnly, catalogHandler.Remove)
		api.PATCH("/lives/:id/products/:productId", sellerOnly, catalogHandler.Update)
		api.PATCH("/lives/:id/products/:productId/reorder", sellerOnly, catalogHandler.Reorder)
		api.POST("/lives/:id/products/:productId/sale", sellerOnly, catalogHandler.RecordSale)

		// RTC tokens
		if rtcHandler != nil {
			api.GET("/lives/:id/rtc-token", rtcHandler.Token)
		}

		// Summary
		api.GET("/lives/:id/summary", sellerOnly, analyticsHandler.GetBySession)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsValidate, sessionRepo, tracker, engagementSvc, cfg.Live.RecentMessages))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go finalizer.Run(workerCtx)
	go finalizer.RunSweeper(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
