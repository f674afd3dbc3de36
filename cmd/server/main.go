// Package main runs the event registration HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventforms/backend/config"
	"github.com/eventforms/backend/internal/admission"
	"github.com/eventforms/backend/internal/auth"
	"github.com/eventforms/backend/internal/lifecycle"
	"github.com/eventforms/backend/internal/notify"
	"github.com/eventforms/backend/internal/router"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/internal/store/memory"
	"github.com/eventforms/backend/internal/store/postgres"
	"github.com/eventforms/backend/pkg/database"
	"github.com/eventforms/backend/pkg/queue"
	"github.com/eventforms/backend/pkg/redis"
	"github.com/eventforms/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	st := openStore(ctx, cfg, logger)
	defer st.Close()

	loc, _ := cfg.Events.Location() // validated by config.Load
	eval := admission.NewEvaluator(admission.SystemClock{}, loc)

	notifier, closeNotifier := newNotifier(ctx, cfg, logger)
	defer closeNotifier()

	var blobs storage.Blobs
	uploadDir := ""
	if cfg.Storage.S3Bucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.Storage.S3Region,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretKey,
			Bucket:          cfg.Storage.S3Bucket,
			PublicRead:      cfg.Storage.S3PublicRead,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		blobs = s3Client
	} else {
		local, err := storage.NewLocal(cfg.Storage.UploadDir, "uploads", logger)
		if err != nil {
			logger.Fatal("upload dir", zap.Error(err))
		}
		blobs = local
		uploadDir = local.Dir()
	}

	admins, err := auth.NewAdmins(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.AdminPasswordHash)
	if err != nil {
		logger.Fatal("admin credentials", zap.Error(err))
	}
	if !admins.Enabled() {
		logger.Warn("no admin password configured, admin login disabled")
	}
	if cfg.Auth.AllowQueryAdmin {
		logger.Warn("legacy ?admin=1 flag accepted as admin identity")
	}

	gateway := lifecycle.NewGateway(st, eval,
		lifecycle.WithNotifier(notifier),
		lifecycle.WithLogger(logger))

	handler := router.New(router.Deps{
		Store:           st,
		Evaluator:       eval,
		Gateway:         gateway,
		JWT:             auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpireHours),
		Admins:          admins,
		Blobs:           blobs,
		UploadDir:       uploadDir,
		MaxFlyerBytes:   cfg.Storage.MaxFlyerBytes,
		CORSOrigins:     cfg.Server.CORSAllowedOrigins,
		AllowQueryAdmin: cfg.Auth.AllowQueryAdmin,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Let in-flight confirmation emails finish before the store closes.
	gateway.Wait()
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) store.Store {
	policy, err := store.ParseParticipantPolicy(cfg.Events.ParticipantDedup)
	if err != nil {
		logger.Fatal("participant dedup", zap.Error(err))
	}
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(policy)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}
	return postgres.New(pool, policy, logger)
}

// newNotifier picks how confirmation emails leave the process: through the Redis queue
// when one is configured, straight over SMTP otherwise, or not at all. Queued jobs only
// carry ids, so the worker needs the shared Postgres store to resolve them.
func newNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notify.Notifier, func()) {
	if cfg.Redis.Addr != "" && cfg.Database.Driver == config.DriverMemory {
		logger.Warn("REDIS_ADDR ignored with the in-memory store, the worker cannot read its responses")
	}
	if cfg.Redis.Addr != "" && cfg.Database.Driver == config.DriverPostgres {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		logger.Info("confirmation emails queued for the worker")
		return notify.NewQueued(queue.NewQueue(rdb.Client, logger)), func() { _ = rdb.Close() }
	}
	if cfg.Email.Enabled() {
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
		return notify.NewDirect(mailer, cfg.Email.AppURL), func() {}
	}
	logger.Info("email disabled")
	return notify.Nop{Logger: logger}, func() {}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
