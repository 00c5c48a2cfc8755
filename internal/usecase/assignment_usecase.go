package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

// AssignmentUseCase mutates slot<->transport, driver<->slot, truck<->slot and
// transport<->trailer bindings.
type AssignmentUseCase struct {
	e      *Engine
	logger *zap.Logger
}

func NewAssignmentUseCase(e *Engine) *AssignmentUseCase {
	return &AssignmentUseCase{e: e, logger: e.logger.Named("assignment")}
}

// Assign puts the transport into slotID on date, or takes it out of its slot
// on date when slotID is nil. The previous slot on the same date loses the
// assignment in the same commit.
func (uc *AssignmentUseCase) Assign(ctx context.Context, transportID int64, slotID *int64, date domain.Date, ack Acknowledgements) (*Result, error) {
	if err := requireDate(date); err != nil {
		return nil, err
	}
	keys := func() ([]string, error) {
		k := []string{board.TransportKey(transportID), board.DateKey(date)}
		if t, ok := uc.e.board.Transport(transportID); ok && t.TrailerID != nil {
			k = append(k, board.TrailerKey(*t.TrailerID))
		}
		return k, nil
	}

	return uc.e.mutate(ctx, "assign", keys, func(ctx context.Context, x *tx) error {
		if err := x.ensureDate(ctx, date); err != nil {
			return err
		}
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		current := x.slotOfTransport(t.ID, date)

		if slotID == nil {
			if current == nil {
				return errors.NotFound(errors.CodeAssignmentNotFound,
					"transport %d has no slot on %s", t.ID, date)
			}
			if t.Lifecycle.SentToDriver() && !ack.DetachDispatched {
				return detachRequiredErr([]int64{t.ID},
					"transport %d is dispatched; unassigning detaches it from driver and truck", t.ID)
			}
			current.Remove(t.ID)
			x.putSlot(current, domain.UpdateAssignment)
			if t.Lifecycle.SentToDriver() {
				x.detach(t)
			}
			return nil
		}

		if err := t.Lifecycle.RequireSchedulable(); err != nil {
			return err
		}
		target, err := x.slot(*slotID)
		if err != nil {
			return err
		}
		if target.Date != date {
			return errors.InvalidState(errors.CodeSlotDateMismatch,
				"slot %d is on %s, not %s", target.ID, target.Date, date)
		}
		if !t.HasPlanningDate(date) {
			return errors.InvalidState(errors.CodeNotPlannedOnDate,
				"transport %d is not planned on %s", t.ID, date).
				WithDetail("planning_dates", dateStrings(t.PlanningDates()))
		}
		if current != nil && current.ID == target.ID {
			return nil
		}
		if t.Lifecycle.SentToDriver() && !ack.DetachDispatched {
			return detachRequiredErr([]int64{t.ID},
				"transport %d is dispatched; moving it detaches it from driver and truck", t.ID)
		}

		driver, truck, err := uc.e.slotResources(target)
		if err != nil {
			return err
		}
		warnings, err := uc.e.compatibility(driver, truck, []*domain.Transport{t})
		if err != nil {
			return err
		}
		if len(warnings) > 0 && !ack.Compatibility {
			return compatibilityErr(warnings)
		}

		if current != nil {
			current.Remove(t.ID)
			x.putSlot(current, domain.UpdateAssignment)
		}
		target.Append(t.ID, x.now)
		x.putSlot(target, domain.UpdateAssignment)
		if t.Lifecycle.SentToDriver() {
			x.detach(t)
		}
		if len(warnings) > 0 {
			uc.logger.Info("Compatibility warning overridden",
				zap.Int64("transport_id", t.ID),
				zap.Int64("slot_id", target.ID),
				zap.Int("warnings", len(warnings)))
		}
		return nil
	})
}

// Move swaps the transport with its neighbour inside its slot on date.
// Moving the first up or the last down changes nothing.
func (uc *AssignmentUseCase) Move(ctx context.Context, transportID int64, date domain.Date, dir domain.Direction) (*Result, error) {
	if err := requireDate(date); err != nil {
		return nil, err
	}
	if !dir.Valid() {
		return nil, errors.InvalidInput(errors.CodeInvalidDirection, "direction must be up or down, got %q", dir)
	}
	keys := staticKeys(board.TransportKey(transportID), board.DateKey(date))

	return uc.e.mutate(ctx, "move", keys, func(ctx context.Context, x *tx) error {
		if err := x.ensureDate(ctx, date); err != nil {
			return err
		}
		s := x.slotOfTransport(transportID, date)
		if s == nil {
			return errors.NotFound(errors.CodeAssignmentNotFound,
				"transport %d has no slot on %s", transportID, date)
		}
		if s.Move(transportID, dir) {
			x.putSlot(s, domain.UpdateAssignment)
		}
		return nil
	})
}

// ReorderSlots moves the slot at oldIndex to newIndex (0-based) among the
// slots of date and renumbers them all from 1. Slot contents are untouched.
func (uc *AssignmentUseCase) ReorderSlots(ctx context.Context, date domain.Date, oldIndex, newIndex int) (*Result, error) {
	if err := requireDate(date); err != nil {
		return nil, err
	}
	return uc.e.mutate(ctx, "reorder_slots", staticKeys(board.DateKey(date)), func(ctx context.Context, x *tx) error {
		if err := x.ensureDate(ctx, date); err != nil {
			return err
		}
		slots := x.slotsOn(date)
		n := len(slots)
		if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
			return errors.InvalidInput(errors.CodeIndexOutOfRange,
				"indexes %d -> %d out of range for %d slots on %s", oldIndex, newIndex, n, date)
		}
		if oldIndex == newIndex {
			return nil
		}
		for _, s := range domain.RenumberSlots(domain.MoveSlot(slots, oldIndex, newIndex)) {
			x.putSlot(s, "")
		}
		x.reorder(date)
		return nil
	})
}

// BindDriver binds driverID to the slot, or unbinds with nil.
func (uc *AssignmentUseCase) BindDriver(ctx context.Context, slotID int64, driverID *int64, ack Acknowledgements) (*Result, error) {
	var extra []string
	if driverID != nil {
		extra = append(extra, board.DriverKey(*driverID))
	}

	return uc.e.mutate(ctx, "bind_driver", uc.e.slotKeys(ctx, slotID, extra...), func(ctx context.Context, x *tx) error {
		s, err := x.loadSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if domain.SameID(s.DriverID, driverID) {
			return nil
		}
		var driver *domain.Driver
		if driverID != nil {
			d, ok := uc.e.board.Driver(*driverID)
			if !ok {
				return errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", *driverID)
			}
			if other, busy := uc.e.board.DriverSlot(d.ID, s.Date, s.ID); busy {
				return errors.Conflict(errors.CodeDriverBusy,
					"driver %s is already assigned to slot %d on %s", d.Name, other, s.Date).
					WithDetail("slot_id", other)
			}
			driver = d
		}
		return uc.rebindSlot(ctx, x, s, ack, func(transports []*domain.Transport) ([]compatWarning, error) {
			s.DriverID = driverID
			return uc.e.compatibility(driver, nil, transports)
		}, domain.UpdateDriver)
	})
}

// BindTruck binds truckID to the slot, or unbinds with nil.
func (uc *AssignmentUseCase) BindTruck(ctx context.Context, slotID int64, truckID *int64, ack Acknowledgements) (*Result, error) {
	var extra []string
	if truckID != nil {
		extra = append(extra, board.TruckKey(*truckID))
	}

	return uc.e.mutate(ctx, "bind_truck", uc.e.slotKeys(ctx, slotID, extra...), func(ctx context.Context, x *tx) error {
		s, err := x.loadSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if domain.SameID(s.TruckID, truckID) {
			return nil
		}
		var truck *domain.Truck
		if truckID != nil {
			t, ok := uc.e.board.Truck(*truckID)
			if !ok {
				return errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", *truckID)
			}
			if other, busy := uc.e.board.TruckSlot(t.ID, s.Date, s.ID); busy {
				return errors.Conflict(errors.CodeTruckBusy,
					"truck %s is already assigned to slot %d on %s", t.Name, other, s.Date).
					WithDetail("slot_id", other)
			}
			truck = t
		}
		return uc.rebindSlot(ctx, x, s, ack, func(transports []*domain.Transport) ([]compatWarning, error) {
			s.TruckID = truckID
			return uc.e.compatibility(nil, truck, transports)
		}, domain.UpdateTruck)
	})
}

// rebindSlot applies a driver/truck change: dispatched transports in the slot
// need the detach acknowledgment, then compatibility is checked.
func (uc *AssignmentUseCase) rebindSlot(
	ctx context.Context,
	x *tx,
	s *domain.Slot,
	ack Acknowledgements,
	bind func(transports []*domain.Transport) ([]compatWarning, error),
	typ domain.UpdateType,
) error {
	var transports, dispatched []*domain.Transport
	var dispatchedIDs []int64
	for _, id := range s.TransportIDs() {
		t, err := x.transport(ctx, id)
		if err != nil {
			return err
		}
		transports = append(transports, t)
		if t.Lifecycle.Dispatch().Dispatched() {
			dispatched = append(dispatched, t)
			dispatchedIDs = append(dispatchedIDs, t.ID)
		}
	}
	if len(dispatched) > 0 && !ack.DetachDispatched {
		return detachRequiredErr(dispatchedIDs,
			"slot %d carries %d dispatched transport(s); changing its resources detaches them", s.ID, len(dispatched))
	}
	warnings, err := bind(transports)
	if err != nil {
		return err
	}
	if len(warnings) > 0 && !ack.Compatibility {
		return compatibilityErr(warnings)
	}
	for _, t := range dispatched {
		x.detach(t)
	}
	x.putSlot(s, typ)
	return nil
}

// BindTrailer binds trailerID to the transport, or releases it with nil.
// The genset check runs against the trucks of the slots the transport
// already holds. An unslotted transport gets it on Assign.
func (uc *AssignmentUseCase) BindTrailer(ctx context.Context, transportID int64, trailerID *int64, ack Acknowledgements) (*Result, error) {
	var extra []string
	if trailerID != nil {
		extra = append(extra, board.TrailerKey(*trailerID))
	}

	return uc.e.mutate(ctx, "bind_trailer", uc.e.transportKeys(ctx, transportID, extra...), func(ctx context.Context, x *tx) error {
		if err := x.ensureTransportDates(ctx, transportID); err != nil {
			return err
		}
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		if err := t.Lifecycle.RequireSchedulable(); err != nil {
			return err
		}
		if domain.SameID(t.TrailerID, trailerID) {
			return nil
		}
		if t.Lifecycle.CurrentStatus() == domain.CurrentOngoing && !ack.OngoingChange {
			return errors.ConfirmationRequired(errors.CodeOngoingDispatch,
				"transport %d is ongoing; confirm the trailer change", t.ID).
				WithDetail("transport_ids", []int64{t.ID})
		}

		t.TrailerID = trailerID
		if trailerID != nil {
			if _, ok := uc.e.board.Trailer(*trailerID); !ok {
				return errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", *trailerID)
			}
			if c := uc.e.board.TrailerConflicts(*trailerID, t.ID, t.TouchedDates()); c.Busy() {
				return trailerConflictErr(*trailerID, c)
			}
			var warnings []compatWarning
			for _, s := range x.slotsOfTransport(t.ID) {
				_, truck, err := uc.e.slotResources(s)
				if err != nil {
					return err
				}
				ws, err := uc.e.compatibility(nil, truck, []*domain.Transport{t})
				if err != nil {
					return err
				}
				warnings = append(warnings, ws...)
			}
			if len(warnings) > 0 && !ack.Compatibility {
				return compatibilityErr(warnings)
			}
		}
		x.putTransport(t, domain.UpdateTrailer)
		return nil
	})
}

func trailerConflictErr(trailerID int64, c board.TrailerConflict) error {
	if c.CutBy != nil {
		return errors.Conflict(errors.CodeTrailerBlockedByCut,
			"trailer %d in use until the cut of transport %d is resolved on dates: %s",
			trailerID, *c.CutBy, formatDates(c.CutDates)).
			WithDetails(map[string]interface{}{
				"trailer_id":       trailerID,
				"cut_transport_id": *c.CutBy,
				"dates":            dateStrings(c.CutDates),
			})
	}
	return errors.Conflict(errors.CodeTrailerInUse,
		"trailer %d in use on dates: %s", trailerID, formatDates(c.Dates)).
		WithDetails(map[string]interface{}{
			"trailer_id":    trailerID,
			"transport_ids": c.Transports,
			"dates":         dateStrings(c.Dates),
		})
}
