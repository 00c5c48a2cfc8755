package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

// SlotUseCase creates, annotates and deletes slots.
type SlotUseCase struct {
	e      *Engine
	logger *zap.Logger
}

func NewSlotUseCase(e *Engine) *SlotUseCase {
	return &SlotUseCase{e: e, logger: e.logger.Named("slot")}
}

// CreateSlot appends an empty slot to date.
func (uc *SlotUseCase) CreateSlot(ctx context.Context, date domain.Date, note string) (*Result, error) {
	if err := requireDate(date); err != nil {
		return nil, err
	}
	return uc.e.mutate(ctx, "create_slot", staticKeys(board.DateKey(date)), func(ctx context.Context, x *tx) error {
		if err := x.ensureDate(ctx, date); err != nil {
			return err
		}
		s := &domain.Slot{
			Date:            date,
			SlotNumber:      len(x.slotsOn(date)) + 1,
			Assignments:     []domain.SlotAssignment{},
			DriverStartNote: note,
		}
		if err := uc.e.slotRepo.Create(ctx, s); err != nil {
			return loadErr(err)
		}
		x.persisted = true
		x.putSlot(s, domain.UpdateCreated)
		return nil
	})
}

// UpdateStartNote replaces the driver start note of a slot.
func (uc *SlotUseCase) UpdateStartNote(ctx context.Context, slotID int64, note string) (*Result, error) {
	return uc.e.mutate(ctx, "update_slot_note", uc.e.slotKeys(ctx, slotID), func(ctx context.Context, x *tx) error {
		s, err := x.loadSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if s.DriverStartNote == note {
			return nil
		}
		s.DriverStartNote = note
		x.putSlot(s, domain.UpdateNotes)
		return nil
	})
}

// DeleteSlot removes a slot and renumbers the rest of its date. A slot that
// still holds transports is only deleted with force; they fall back to the
// unassigned pool.
func (uc *SlotUseCase) DeleteSlot(ctx context.Context, slotID int64, force bool, ack Acknowledgements) (*Result, error) {
	return uc.e.mutate(ctx, "delete_slot", uc.e.slotKeys(ctx, slotID), func(ctx context.Context, x *tx) error {
		s, err := x.loadSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if !s.IsEmpty() && !force {
			return errors.InvalidState(errors.CodeSlotNotEmpty,
				"slot %d still holds %d transport(s)", s.ID, len(s.Assignments)).
				WithDetail("transport_ids", s.TransportIDs())
		}

		var dispatched []*domain.Transport
		var dispatchedIDs []int64
		for _, id := range s.TransportIDs() {
			t, err := x.transport(ctx, id)
			if err != nil {
				return err
			}
			if t.Lifecycle.SentToDriver() {
				dispatched = append(dispatched, t)
				dispatchedIDs = append(dispatchedIDs, t.ID)
			}
		}
		if len(dispatched) > 0 && !ack.DetachDispatched {
			return detachRequiredErr(dispatchedIDs,
				"slot %d carries %d dispatched transport(s); deleting it detaches them", s.ID, len(dispatched))
		}
		for _, t := range dispatched {
			x.detach(t)
		}

		x.deleteSlot(s)
		if changed := domain.RenumberSlots(x.slotsOn(s.Date)); len(changed) > 0 {
			for _, other := range changed {
				x.putSlot(other, "")
			}
			x.reorder(s.Date)
		}
		uc.logger.Info("Slot deleted",
			zap.Int64("slot_id", s.ID),
			zap.String("date", s.Date.String()),
			zap.Int("evicted", len(s.Assignments)))
		return nil
	})
}
