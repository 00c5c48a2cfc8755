package relay

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/metrics"
	"github.com/dispatch-board/internal/worker"
)

// Config - настройки ретрансляции
type Config struct {
	Buffer    int    // буфер подписки на фид
	MaxLen    int64  // приблизительная длина стрима после обрезки
	TrimEvery uint64 // обрезать стрим каждые N опубликованных событий (0 - не обрезать)
	Breaker   BreakerConfig
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Buffer:    1024,
		MaxLen:    100000,
		TrimEvery: 500,
		Breaker:   DefaultBreakerConfig(),
	}
}

// ChangeRelayWorker переносит события фида доски в Redis Stream, откуда их
// читают проекции в других процессах.
//
// Событие, которое не удалось опубликовать, теряется для стрима; потребители
// видят разрыв последовательности и перестраивают день целиком.
type ChangeRelayWorker struct {
	*worker.BaseWorker
	feed       *board.Feed
	streamRepo repository.StreamRepository
	breaker    *gobreaker.CircuitBreaker
	cfg        Config
	metrics    *metrics.Metrics
	published  uint64
}

// NewChangeRelayWorker создает новый ChangeRelayWorker
func NewChangeRelayWorker(
	feed *board.Feed,
	streamRepo repository.StreamRepository,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ChangeRelayWorker {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	base := worker.NewBaseWorker("change-relay", "", logger)
	return &ChangeRelayWorker{
		BaseWorker: base,
		feed:       feed,
		streamRepo: streamRepo,
		breaker:    newBreaker(cfg.Breaker, m, base.Logger()),
		cfg:        cfg,
		metrics:    m,
	}
}

// Start запускает воркер
func (w *ChangeRelayWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("Starting ChangeRelayWorker",
		zap.String("stream", domain.StreamDispatchChanges),
		zap.Int("buffer", w.cfg.Buffer),
		zap.Int64("max_len", w.cfg.MaxLen))

	sub := w.feed.Subscribe(w.cfg.Buffer)
	defer func() { sub.Close() }()

	for {
		select {
		case <-w.StopChan():
			logger.Info("Worker stopped")
			return nil

		case <-ctx.Done():
			logger.Info("Context cancelled")
			return ctx.Err()

		case evt, ok := <-sub.Events():
			if !ok {
				// фид закрыл отставшую подписку
				logger.Warn("Relay fell behind the feed, resubscribing")
				sub = w.feed.Subscribe(w.cfg.Buffer)
				continue
			}
			w.relay(ctx, evt)
		}
	}
}

func (w *ChangeRelayWorker) relay(ctx context.Context, evt domain.ChangeEvent) {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.streamRepo.PublishToStream(ctx, domain.StreamDispatchChanges, evt)
	})
	if err != nil {
		status := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "rejected"
		}
		w.count(status)
		w.Logger().Warn("Change event not relayed",
			zap.String("event_id", evt.ID.String()),
			zap.String("entity", string(evt.Entity)),
			zap.Int64("entity_id", evt.EntityID),
			zap.Uint64("seq", evt.Seq),
			zap.String("status", status),
			zap.Error(err))
		return
	}
	w.count("ok")

	w.published++
	if w.cfg.TrimEvery == 0 || w.published%w.cfg.TrimEvery != 0 {
		return
	}
	if err := w.streamRepo.TrimStream(ctx, domain.StreamDispatchChanges, w.cfg.MaxLen); err != nil {
		w.Logger().Warn("Failed to trim change stream", zap.Error(err))
	}
}

func (w *ChangeRelayWorker) count(status string) {
	if w.metrics != nil {
		w.metrics.StreamPublished.WithLabelValues(status).Inc()
	}
}
