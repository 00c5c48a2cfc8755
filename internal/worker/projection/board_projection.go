package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/metrics"
	"github.com/dispatch-board/internal/replica"
	"github.com/dispatch-board/internal/worker"
)

// DayLoader fetches the authoritative copy of a day.
type DayLoader interface {
	GetDay(ctx context.Context, date domain.Date) (*domain.BoardDay, error)
}

// Config - настройки проекции
type Config struct {
	TTL     time.Duration // время жизни проекции дня в кеше
	MaxDays int           // сколько дней держать в памяти
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{TTL: 24 * time.Hour, MaxDays: 62}
}

// BoardProjectionWorker keeps per-day board projections in the cache by
// folding the change stream onto them. A day is loaded from the authority
// the first time one of its events arrives and rebuilt whenever its
// sequence skips.
type BoardProjectionWorker struct {
	*worker.BaseWorker
	streamRepo repository.StreamRepository
	cacheRepo  repository.CacheRepository
	loader     DayLoader
	reconciler *replica.Reconciler
	cfg        Config
	metrics    *metrics.Metrics
}

// NewBoardProjectionWorker создает новый BoardProjectionWorker
func NewBoardProjectionWorker(
	streamRepo repository.StreamRepository,
	cacheRepo repository.CacheRepository,
	loader DayLoader,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BoardProjectionWorker {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = def.MaxDays
	}
	base := worker.NewBaseWorker("board-projection", domain.GroupBoardProjection, logger)
	return &BoardProjectionWorker{
		BaseWorker: base,
		streamRepo: streamRepo,
		cacheRepo:  cacheRepo,
		loader:     loader,
		// проекция не делает своих мутаций, окно защиты не нужно
		reconciler: replica.NewReconciler(replica.NewView(), replica.NewPendingQueue(), 0, base.Logger()),
		cfg:        cfg,
		metrics:    m,
	}
}

// Start запускает воркер
func (w *BoardProjectionWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("Starting BoardProjectionWorker",
		zap.String("consumer_group", w.ConsumerGroup()),
		zap.String("consumer_name", w.ConsumerName()))

	// Создаем consumer group
	if err := w.streamRepo.CreateConsumerGroup(ctx, domain.StreamDispatchChanges, w.ConsumerGroup()); err != nil {
		logger.Error("Failed to create consumer group", zap.Error(err))
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	messages, err := w.streamRepo.ConsumeStream(consumeCtx, domain.StreamDispatchChanges, w.ConsumerGroup(), w.ConsumerName())
	if err != nil {
		return fmt.Errorf("failed to consume stream: %w", err)
	}

	for {
		select {
		case <-w.StopChan():
			logger.Info("Worker stopped")
			return nil

		case <-ctx.Done():
			logger.Info("Context cancelled")
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				logger.Info("Change stream closed")
				return nil
			}
			if err := w.handle(ctx, msg); err != nil {
				// сообщение остаётся в pending, следующий разрыв
				// последовательности перестроит день
				logger.Error("Failed to project change",
					zap.String("message_id", msg.ID),
					zap.Error(err))
				continue
			}
			if err := w.streamRepo.AckMessage(ctx, domain.StreamDispatchChanges, w.ConsumerGroup(), msg.ID); err != nil {
				logger.Warn("Failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
	}
}

func (w *BoardProjectionWorker) handle(ctx context.Context, msg domain.StreamMessage) error {
	var e domain.ChangeEvent
	if err := json.Unmarshal([]byte(msg.Data), &e); err != nil {
		w.Logger().Warn("Failed to parse message, skipping",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return nil
	}

	view := w.reconciler.View()
	changed := make(map[domain.Date]bool)

	// события слотов открывают проекцию своей даты
	if e.Date != nil && !view.Watches(*e.Date) {
		if err := w.load(ctx, *e.Date); err != nil {
			return err
		}
		changed[*e.Date] = true
	}

	res := w.reconciler.ApplyPush(e)
	for _, d := range res.Applied {
		changed[d] = true
	}
	for _, d := range res.Reload {
		if err := w.load(ctx, d); err != nil {
			return err
		}
		if w.metrics != nil {
			w.metrics.ProjectionsRebuilt.Inc()
		}
		changed[d] = true
	}

	for d := range changed {
		day, ok := view.Day(d)
		if !ok {
			continue
		}
		day.UpdatedAt = time.Now().UTC()
		if err := w.cacheRepo.SetBoard(ctx, day, w.cfg.TTL); err != nil {
			return fmt.Errorf("store projection %s: %w", d, err)
		}
	}
	w.evict()
	return nil
}

func (w *BoardProjectionWorker) load(ctx context.Context, d domain.Date) error {
	day, err := w.loader.GetDay(ctx, d)
	if err != nil {
		return fmt.Errorf("load day %s: %w", d, err)
	}
	w.reconciler.Load(day)
	w.Logger().Debug("Projection loaded",
		zap.String("date", d.String()),
		zap.Uint64("seq", day.Seq))
	return nil
}

// evict drops the oldest days beyond MaxDays; their cache entries expire
// on their own.
func (w *BoardProjectionWorker) evict() {
	view := w.reconciler.View()
	dates := view.Dates()
	for i := 0; len(dates)-i > w.cfg.MaxDays; i++ {
		view.Drop(dates[i])
	}
}
