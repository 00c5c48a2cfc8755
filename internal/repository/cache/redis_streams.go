package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/config"
)

// NewRedisStreams connects the client used for the change stream. It may
// point at a different instance than the projection cache.
func NewRedisStreams(cfg *config.RedisStreamsConfig, logger *zap.Logger) (*redis.Client, error) {
	client, err := connect(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), cfg.Password, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis streams: %w", err)
	}
	logger.Info("Redis Streams connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("db", cfg.DB))
	return client, nil
}
