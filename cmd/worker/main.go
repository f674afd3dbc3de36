// Package main runs the background worker that composes and delivers queued
// confirmation emails from the shared database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventforms/backend/config"
	"github.com/eventforms/backend/internal/notify"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/internal/store/postgres"
	"github.com/eventforms/backend/internal/worker"
	"github.com/eventforms/backend/pkg/database"
	"github.com/eventforms/backend/pkg/queue"
	"github.com/eventforms/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is required for the worker")
	}
	if !cfg.Email.Enabled() {
		logger.Fatal("SMTP_HOST is required for the worker")
	}
	if cfg.Database.Driver != config.DriverPostgres {
		logger.Fatal("the worker needs STORE_DRIVER=postgres to read queued responses")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	policy, err := store.ParseParticipantPolicy(cfg.Events.ParticipantDedup)
	if err != nil {
		logger.Fatal("participant dedup", zap.Error(err))
	}
	st := postgres.New(pool, policy, logger)
	defer st.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass,
		From:     cfg.Email.From(),
	}, logger)
	if err != nil {
		logger.Fatal("smtp", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, st, mailer, cfg.Email.AppURL, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
