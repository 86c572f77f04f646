package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/db"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/live"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/profile"
	"github.com/shinyyama/rental-backend/internal/server"
	"github.com/shinyyama/rental-backend/internal/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID, StorageBucket: cfg.StorageBucket}, opts...)
	if err != nil {
		logger.Fatal("firebase init failed", zap.Error(err))
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		logger.Fatal("firebase auth init failed", zap.Error(err))
	}

	m := metrics.New()
	var (
		bus      live.Bus
		profiles inbox.ProfileLookup = profile.NewFirebaseResolver(authClient)
	)
	if cfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer rdb.Close()
		bus = live.NewRedisBus(rdb, cfg.LiveBuffer, logger, m)
		profiles = profile.NewCachedResolver(profiles, profile.NewRedisCache(rdb), cfg.ProfileCacheTTL, logger)
		logger.Info("live fan-out via redis")
	} else {
		bus = live.NewHub(cfg.LiveBuffer, logger, m)
		logger.Info("live fan-out in process; REDIS_URL not set")
	}

	var uploader storage.Uploader = storage.NewGCS(nil, "")
	if cfg.StorageBucket != "" {
		gcsClient, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			logger.Fatal("storage client init failed", zap.Error(err))
		}
		defer gcsClient.Close()
		uploader = storage.NewGCS(gcsClient, cfg.StorageBucket)
	} else {
		logger.Warn("STORAGE_BUCKET not set; rental receipts cannot be uploaded")
	}

	srv := server.New(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Verifier: authClient,
		Profiles: profiles,
		Bus:      bus,
		Uploader: uploader,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.Port)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Error("db connect error", zap.Error(err))
			return
		}
		if err := db.Migrate(conn); err != nil {
			logger.Error("auto migrate error", zap.Error(err))
		}
		srv.SetDB(conn)
		logger.Info("database ready")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
