package repository

import (
	"context"

	"github.com/dispatch-board/internal/domain"
)

// TransportRepository определяет методы для работы с транспортными заданиями.
// Updates go through UnitOfWork so they commit together with slot changes.
type TransportRepository interface {
	// GetByID возвращает задание вместе с назначениями и cut info
	GetByID(ctx context.Context, id int64) (*domain.Transport, error)

	// ListOpen возвращает все не удалённые задания
	ListOpen(ctx context.Context) ([]*domain.Transport, error)

	// ListByDate возвращает задания, у которых есть пункт назначения на дату
	ListByDate(ctx context.Context, date domain.Date) ([]*domain.Transport, error)

	// Create сохраняет новое задание и проставляет ID
	Create(ctx context.Context, t *domain.Transport) error
}
