package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
)

type cacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheRepository(redis *Redis) repository.CacheRepository {
	return &cacheRepository{
		client: redis.Client(),
		logger: redis.logger,
	}
}

// NewCacheRepositoryFromClient wraps an existing client, e.g. in tests.
func NewCacheRepositoryFromClient(client *redis.Client, logger *zap.Logger) repository.CacheRepository {
	return &cacheRepository{client: client, logger: logger}
}

func (r *cacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		r.logger.Error("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache get error: %w", err)
	}

	r.logger.Debug("Cache hit", zap.String("key", key))
	return val, nil
}

func (r *cacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := r.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		r.logger.Error("Failed to set cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set error: %w", err)
	}

	r.logger.Debug("Cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	if err != nil {
		r.logger.Error("Failed to delete from cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache delete error: %w", err)
	}

	r.logger.Debug("Cache deleted", zap.String("key", key))
	return nil
}

func (r *cacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	val, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		r.logger.Error("Failed to check cache existence", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("cache exists error: %w", err)
	}

	return val > 0, nil
}

// BoardKey - ключ проекции доски на дату
func BoardKey(date domain.Date) string {
	return "board:day:" + date.String()
}

// GetBoard получает проекцию доски из кеша
func (r *cacheRepository) GetBoard(ctx context.Context, date domain.Date) (*domain.BoardDay, error) {
	data, err := r.Get(ctx, BoardKey(date))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil // Cache miss
	}

	var day domain.BoardDay
	if err := json.Unmarshal(data, &day); err != nil {
		r.logger.Error("Failed to unmarshal board from cache",
			zap.String("date", date.String()), zap.Error(err))
		return nil, fmt.Errorf("unmarshal board: %w", err)
	}

	return &day, nil
}

// SetBoard сохраняет проекцию доски в кеше
func (r *cacheRepository) SetBoard(ctx context.Context, day *domain.BoardDay, ttl time.Duration) error {
	data, err := json.Marshal(day)
	if err != nil {
		r.logger.Error("Failed to marshal board", zap.Error(err))
		return fmt.Errorf("marshal board: %w", err)
	}

	return r.Set(ctx, BoardKey(day.Date), data, ttl)
}
