package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/config"
	"github.com/dispatch-board/internal/pkg/logger"
	"github.com/dispatch-board/internal/pkg/metrics"
	"github.com/dispatch-board/internal/replica"
	"github.com/dispatch-board/internal/repository/cache"
	redisRepo "github.com/dispatch-board/internal/repository/redis"
	"github.com/dispatch-board/internal/worker"
	"github.com/dispatch-board/internal/worker/projection"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Check if worker is enabled
	if !cfg.Worker.Enabled {
		fmt.Println("Worker is disabled in configuration. Set WORKER_ENABLED=true to enable.")
		os.Exit(0)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Board Projection Worker")
	log.Info("Configuration loaded",
		zap.String("authority_url", cfg.Worker.AuthorityURL),
		zap.Int("projection_days", cfg.Worker.ProjectionDays),
		zap.Duration("board_ttl", cfg.Cache.BoardTTL))

	// 3. Connect to Redis (projection cache)
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// 4. Connect to Redis Streams
	streamClient, err := cache.NewRedisStreams(&cfg.RedisStreams, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis Streams", zap.Error(err))
	}
	defer func() {
		if err := streamClient.Close(); err != nil {
			log.Error("Failed to close Redis Streams connection", zap.Error(err))
		}
	}()

	// 5. Initialize repositories
	cacheRepo := cache.NewCacheRepository(redisClient)
	streamRepo := redisRepo.NewStreamRepository(streamClient, log)

	// дни перечитываются из API доски
	authority := replica.NewHTTPAuthority(replica.HTTPConfig{
		BaseURL:        cfg.Worker.AuthorityURL,
		RequestTimeout: cfg.Worker.AuthorityTimeout,
	}, log.Named("authority"))

	// 6. Initialize workers
	projectionWorker := projection.NewBoardProjectionWorker(
		streamRepo,
		cacheRepo,
		authority,
		projection.Config{
			TTL:     cfg.Cache.BoardTTL,
			MaxDays: cfg.Worker.ProjectionDays,
		},
		metrics.New(metrics.DefaultConfig()),
		log,
	)

	// 7. Create worker manager and register workers
	workerManager := worker.NewWorkerManager(log, worker.WithShutdownTimeout(cfg.Worker.ShutdownTimeout))
	if err := workerManager.Register(projectionWorker); err != nil {
		log.Fatal("Failed to register worker", zap.Error(err))
	}

	// 8. Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start workers
	if err := workerManager.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Received shutdown signal")

	// Cancel context to stop workers
	cancel()

	// Stop worker manager
	if err := workerManager.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
	}

	log.Info("Worker shutdown complete")
}
