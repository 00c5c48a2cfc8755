package repository

import (
	"context"
	"time"

	"github.com/dispatch-board/internal/domain"
)

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	// Get получает значение из кеша по ключу
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кеше с TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет значение из кеша
	Delete(ctx context.Context, key string) error

	// Exists проверяет существование ключа
	Exists(ctx context.Context, key string) (bool, error)

	// GetBoard получает проекцию доски на дату; nil если её нет
	GetBoard(ctx context.Context, date domain.Date) (*domain.BoardDay, error)

	// SetBoard сохраняет проекцию доски на дату
	SetBoard(ctx context.Context, day *domain.BoardDay, ttl time.Duration) error
}
