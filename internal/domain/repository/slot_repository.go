package repository

import (
	"context"

	"github.com/dispatch-board/internal/domain"
)

// SlotRepository определяет методы для работы со слотами и назначениями
type SlotRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)

	// ListByDate возвращает слоты даты, упорядоченные по slot_number
	ListByDate(ctx context.Context, date domain.Date) ([]*domain.Slot, error)

	// ListRange возвращает слоты в диапазоне дат включительно
	ListRange(ctx context.Context, from, to domain.Date) ([]*domain.Slot, error)

	// ListByTransport возвращает слоты, в которых стоит задание
	ListByTransport(ctx context.Context, transportID int64) ([]*domain.Slot, error)

	// Create сохраняет пустой слот и проставляет ID
	Create(ctx context.Context, s *domain.Slot) error
}
