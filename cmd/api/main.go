package main

// @title Dispatch Board API
// @version 1.0.0
// @description Доска диспетчера: распределение транспортных заданий по слотам водителей и тягачей на дату.
// @description
// @description Основные возможности:
// @description - Справочник водителей, тягачей и прицепов
// @description - Планирование транспортов и назначение в слоты с проверкой конфликтов
// @description - Жизненный цикл: отправка водителю, завершение, hold, удаление
// @description - Разрыв (cut) и восстановление перевозки
// @description - Поток изменений с порядковыми номерами по дате (WebSocket /ws)

// @contact.name API Support
// @contact.email support@dispatch-board.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/dispatch-board/docs/swagger"
	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/config"
	httpDelivery "github.com/dispatch-board/internal/delivery/http"
	"github.com/dispatch-board/internal/delivery/http/handler"
	"github.com/dispatch-board/internal/delivery/ws"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/logger"
	"github.com/dispatch-board/internal/pkg/metrics"
	"github.com/dispatch-board/internal/repository/cache"
	"github.com/dispatch-board/internal/repository/memory"
	"github.com/dispatch-board/internal/repository/postgres"
	redisRepo "github.com/dispatch-board/internal/repository/redis"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/worker"
	"github.com/dispatch-board/internal/worker/relay"
)

type storage struct {
	resources  repository.ResourceRepository
	transports repository.TransportRepository
	slots      repository.SlotRepository
	uow        repository.UnitOfWork
	close      func() error
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Dispatch Board")
	log.Info("Configuration loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("server_addr", cfg.GetServerAddr()),
		zap.String("ws_addr", cfg.GetWebSocketAddr()),
		zap.String("storage", cfg.Board.StorageDriver),
		zap.Bool("publish_to_streams", cfg.Stream.PublishToStreams))

	m := metrics.New(metrics.DefaultConfig())
	checkers := make(map[string]handler.HealthChecker)

	// 3. Storage
	store, err := openStorage(cfg, log, checkers)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Error("Failed to close storage", zap.Error(err))
		}
	}()

	// 4. Redis: projection cache and change stream
	var (
		cacheRepo    repository.CacheRepository
		streamRepo   repository.StreamRepository
		redisClient  *cache.Redis
		streamClient interface{ Close() error }
	)
	if cfg.Stream.PublishToStreams {
		redisClient, err = cache.NewRedis(&cfg.Redis, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		checkers["redis"] = redisClient
		cacheRepo = cache.NewCacheRepository(redisClient)

		client, err := cache.NewRedisStreams(&cfg.RedisStreams, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis Streams", zap.Error(err))
		}
		streamClient = client
		streamRepo = redisRepo.NewStreamRepository(client, log)
	}

	// 5. Board engine
	b := board.New(store.resources, store.transports, store.slots, board.Options{
		PreloadPastDays:   cfg.Board.PreloadPastDays,
		PreloadFutureDays: cfg.Board.PreloadFutureDays,
	}, log.Named("board"))

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	today := domain.DateOf(time.Now().UTC())
	if err := b.Load(loadCtx, today); err != nil {
		cancelLoad()
		log.Fatal("Failed to load board", zap.Error(err))
	}
	cancelLoad()
	log.Info("Board loaded", zap.String("today", today.String()))

	// последовательности продолжаются после рестарта
	feed := board.NewFeed(uint64(time.Now().UnixMicro()), m, log.Named("feed"))
	engine := usecase.NewEngine(b, board.NewLockSet(), feed, store.uow,
		store.transports, store.slots, store.resources, m, log.Named("engine"))

	// 6. Use cases
	boardUC := usecase.NewBoardUseCase(engine)
	transportUC := usecase.NewTransportUseCase(engine)
	lifecycleUC := usecase.NewLifecycleUseCase(engine)
	cutUC := usecase.NewCutUseCase(engine)
	assignmentUC := usecase.NewAssignmentUseCase(engine)
	slotUC := usecase.NewSlotUseCase(engine)
	resourceUC := usecase.NewResourceUseCase(engine)

	log.Info("Use cases initialized")

	// 7. HTTP handlers and server
	server := httpDelivery.NewServer(cfg, m, httpDelivery.Handlers{
		Board:      handler.NewBoardHandler(boardUC, cacheRepo, log),
		Transport:  handler.NewTransportHandler(transportUC, boardUC, log),
		Lifecycle:  handler.NewLifecycleHandler(lifecycleUC, cutUC, log),
		Assignment: handler.NewAssignmentHandler(assignmentUC, log),
		Slot:       handler.NewSlotHandler(slotUC, log),
		Resource:   handler.NewResourceHandler(resourceUC, log),
		Health:     handler.NewHealthHandler(cfg.Board.StorageDriver, checkers, log),
	}, log)

	// 8. Push hub
	hub := ws.NewHub(feed, ws.Config{
		FeedBuffer: cfg.Stream.FeedBuffer,
		SendBuffer: cfg.WebSocket.SendBuffer,
		PingPeriod: cfg.WebSocket.PingPeriod,
		WriteWait:  cfg.WebSocket.WriteWait,
	}, m, log)
	wsServer := ws.NewServer(cfg.GetWebSocketAddr(), hub, log)

	// 9. Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerManager := worker.NewWorkerManager(log, worker.WithShutdownTimeout(cfg.Worker.ShutdownTimeout))
	if streamRepo != nil {
		relayWorker := relay.NewChangeRelayWorker(feed, streamRepo, relay.Config{
			Buffer:    cfg.Stream.FeedBuffer,
			MaxLen:    cfg.Stream.MaxLen,
			TrimEvery: cfg.Stream.TrimEvery,
			Breaker: relay.BreakerConfig{
				Name:             "redis-stream",
				MaxRequests:      cfg.Stream.BreakerHalfOpen,
				Interval:         cfg.Stream.BreakerInterval,
				Timeout:          cfg.Stream.BreakerTimeout,
				FailureThreshold: cfg.Stream.BreakerFailures,
			},
		}, m, log)
		if err := workerManager.Register(relayWorker); err != nil {
			log.Fatal("Failed to register relay worker", zap.Error(err))
		}
	}
	if err := workerManager.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	go func() {
		if err := hub.Run(ctx); err != nil && err != context.Canceled {
			log.Error("Push hub stopped", zap.Error(err))
		}
	}()
	go server.RunMaintenance(ctx)

	// 10. Start listeners
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	go func() {
		if err := wsServer.Start(); err != nil {
			log.Fatal("Failed to start WebSocket server", zap.Error(err))
		}
	}()

	log.Info("Server started successfully",
		zap.String("address", cfg.GetServerAddr()),
		zap.String("ws_address", cfg.GetWebSocketAddr()),
		zap.String("env", cfg.Server.Env))

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("WebSocket server shutdown error", zap.Error(err))
	}

	// Stop hub and relay after the listeners: no new mutations can arrive
	cancel()
	if err := workerManager.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
	}

	if streamClient != nil {
		if err := streamClient.Close(); err != nil {
			log.Error("Failed to close Redis Streams", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}

	log.Info("Server stopped successfully")
}

func openStorage(cfg *config.Config, log *zap.Logger, checkers map[string]handler.HealthChecker) (*storage, error) {
	if cfg.Board.StorageDriver == config.StorageMemory {
		log.Warn("Using in-memory storage, state is lost on restart")
		store := memory.NewStore()
		return &storage{
			resources:  store,
			transports: memory.NewTransportRepository(store),
			slots:      memory.NewSlotRepository(store),
			uow:        store,
			close:      func() error { return nil },
		}, nil
	}

	db, err := postgres.New(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Health(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres health check failed: %w", err)
	}
	log.Info("PostgreSQL connected")

	checkers["database"] = db
	return &storage{
		resources:  postgres.NewResourceRepository(db),
		transports: postgres.NewTransportRepository(db),
		slots:      postgres.NewSlotRepository(db),
		uow:        postgres.NewUnitOfWork(db),
		close:      db.Close,
	}, nil
}
