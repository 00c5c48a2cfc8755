package memory

import (
	"context"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
)

type transportRepository struct {
	store *Store
}

func NewTransportRepository(store *Store) repository.TransportRepository {
	return &transportRepository{store: store}
}

func (r *transportRepository) GetByID(ctx context.Context, id int64) (*domain.Transport, error) {
	return r.store.getTransport(ctx, id)
}

func (r *transportRepository) ListOpen(ctx context.Context) ([]*domain.Transport, error) {
	return r.store.listOpenTransports(ctx)
}

func (r *transportRepository) ListByDate(ctx context.Context, date domain.Date) ([]*domain.Transport, error) {
	return r.store.listTransportsByDate(ctx, date)
}

func (r *transportRepository) Create(ctx context.Context, t *domain.Transport) error {
	return r.store.createTransport(ctx, t)
}

type slotRepository struct {
	store *Store
}

func NewSlotRepository(store *Store) repository.SlotRepository {
	return &slotRepository{store: store}
}

func (r *slotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	return r.store.getSlot(ctx, id)
}

func (r *slotRepository) ListByDate(ctx context.Context, date domain.Date) ([]*domain.Slot, error) {
	return r.store.listSlotsRange(ctx, date, date)
}

func (r *slotRepository) ListRange(ctx context.Context, from, to domain.Date) ([]*domain.Slot, error) {
	return r.store.listSlotsRange(ctx, from, to)
}

func (r *slotRepository) ListByTransport(ctx context.Context, transportID int64) ([]*domain.Slot, error) {
	return r.store.listSlotsByTransport(ctx, transportID)
}

func (r *slotRepository) Create(ctx context.Context, s *domain.Slot) error {
	return r.store.createSlot(ctx, s)
}

var (
	_ repository.ResourceRepository = (*Store)(nil)
	_ repository.UnitOfWork         = (*Store)(nil)
)
