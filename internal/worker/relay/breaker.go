package relay

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/pkg/metrics"
)

// BreakerConfig настраивает circuit breaker вокруг публикации в стрим
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // пробных запросов в half-open
	Interval         time.Duration // период сброса счётчиков в closed (0 - никогда)
	Timeout          time.Duration // сколько держать open до half-open
	FailureThreshold uint32        // подряд идущих ошибок до open
}

// DefaultBreakerConfig возвращает настройки по умолчанию
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "redis-stream",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

func newBreaker(cfg BreakerConfig, m *metrics.Metrics, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	if m != nil {
		m.SetCircuitBreakerState(cfg.Name, int(gobreaker.StateClosed))
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if m != nil {
				m.SetCircuitBreakerState(name, int(to))
			}
		},
	})
}
