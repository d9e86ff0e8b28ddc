package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"edushelf/internal/app"
	"edushelf/internal/config"
	"edushelf/internal/server"
	"edushelf/internal/util"
	"edushelf/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	otps, err := store.NewOTPStore(redisClient, 0, 0, 0)
	if err != nil {
		log.Fatalf("failed to init otp store: %v", err)
	}

	appCore, err := app.New(app.Config{
		File:   cfg,
		Logger: logger,
		OTPs:   otps,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	// Local storage is served straight from the upload directory; minio
	// responses carry presigned URLs instead.
	staticDir := ""
	if cfg.StorageBackend == "local" {
		staticDir = cfg.UploadDir
	}

	httpServer, err := server.New(server.Config{
		App:                 appCore,
		Logger:              logger,
		Redis:               redisClient,
		OTPLimitPerMinute:   cfg.OTPRateLimitPerMinute,
		LoginLimitPerMinute: cfg.LoginRateLimitPerMinute,
		CORSOrigin:          cfg.CORSOrigin,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		StaticDir:           staticDir,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("edushelf server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
