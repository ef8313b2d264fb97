// Package main runs the background job worker (session finalize, presence sweep).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bazaarlive/backend/config"
	"github.com/bazaarlive/backend/internal/presence"
	"github.com/bazaarlive/backend/internal/sessions"
	"github.com/bazaarlive/backend/internal/worker"
	"github.com/bazaarlive/backend/pkg/database"
	"github.com/bazaarlive/backend/pkg/queue"
	"github.com/bazaarlive/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sessionRepo := sessions.NewRepository(pool)
	dedupe := time.Duration(cfg.Live.JoinDedupeSec) * time.Second
	presenceTTL := time.Duration(cfg.Live.PresenceTTLSec) * time.Second
	tracker := presence.NewTracker(presence.NewRedisStore(rdb.Client), sessionRepo, nil, dedupe, presenceTTL, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	finalizer := worker.NewSessionFinalizer(tracker, jobQueue, presenceTTL/3, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go finalizer.Run(workerCtx)
	go finalizer.RunSweeper(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
