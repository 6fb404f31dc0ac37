package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/api"
	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/catalog"
	"studio-booking-backend/internal/db"
	"studio-booking-backend/internal/events"
	"studio-booking-backend/internal/logx"
	"studio-booking-backend/internal/mw"
	"studio-booking-backend/internal/notification"
	"studio-booking-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger := logx.New(cfg.Log)
	logger.Info("configuration loaded", "path", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := events.New(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", "err", err)
		}
	}()

	policy := booking.Policy{
		Padding:  cfg.Booking.Buffer,
		Location: cfg.Booking.Location,
		Now:      time.Now,
	}
	opts := []booking.ManagerOption{booking.WithPublisher(publisher)}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workers := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, cfg.Booking.Location, logger)
		workers.Start(ctx)
		opts = append(opts, booking.WithNotifier(workers))
	} else {
		logger.Warn("VAPID keys not configured, slot-freed notifications are disabled")
	}

	manager := booking.NewManager(appStore, policy, logger, opts...)
	go booking.NewSweeper(manager, cfg.Booking.CompletionSweep, logger).Run(ctx)

	responseCache := cache.New(cfg.Server.CacheTTL, 2*cfg.Server.CacheTTL)
	go catalog.NewService(cfg.Catalog, appStore, logger, responseCache.Flush).Run(ctx)

	routerOpts := api.RouterOptions{Cache: responseCache}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter := mw.NewRedisRateLimiter(rdb, cfg.Redis.RateLimit, time.Duration(cfg.Redis.RateLimitWindow)*time.Second, "studiod:rl")
		routerOpts.RateLimit = limiter.Middleware(logger, cfg.Redis.FailOpen)
		logger.Info("using redis rate limiter", "addr", cfg.Redis.Addr)
	}

	handler := api.NewHandler(appStore, manager, webpushOptions, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe", "err", err)
			os.Exit(1)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", "err", err)
	}

	logger.Info("server gracefully stopped")
}
