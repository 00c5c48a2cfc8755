package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

// LifecycleUseCase drives the dispatch state machine and the hold / delete
// side states.
type LifecycleUseCase struct {
	e      *Engine
	logger *zap.Logger
}

func NewLifecycleUseCase(e *Engine) *LifecycleUseCase {
	return &LifecycleUseCase{e: e, logger: e.logger.Named("lifecycle")}
}

// SendToDriver moves a PLANNED transport to ONGOING. The transport must sit in
// a slot on one of its planning dates with both driver and truck bound.
func (uc *LifecycleUseCase) SendToDriver(ctx context.Context, transportID int64) (*Result, error) {
	return uc.e.mutate(ctx, "send_to_driver", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		if err := x.ensureTransportDates(ctx, transportID); err != nil {
			return err
		}
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.SendToDriver()
		if err != nil {
			return err
		}

		ready := false
		for _, s := range x.slotsOfTransport(t.ID) {
			if t.HasPlanningDate(s.Date) && s.DriverID != nil && s.TruckID != nil {
				ready = true
				break
			}
		}
		if !ready {
			return errors.InvalidState(errors.CodeNotReadyForDispatch,
				"transport %d has no slot with driver and truck on its planning dates", t.ID)
		}
		if t.NeedsTrailer && t.TrailerID == nil {
			return errors.InvalidState(errors.CodeNotReadyForDispatch,
				"transport %d needs a trailer", t.ID)
		}
		if t.TrailerID != nil {
			if c := uc.e.board.TrailerConflicts(*t.TrailerID, t.ID, t.TouchedDates()); c.Busy() {
				return trailerConflictErr(*t.TrailerID, c)
			}
		}

		t.Lifecycle = next
		x.putTransport(t, domain.UpdateStatus)
		return nil
	})
}

// Complete: ONGOING -> COMPLETED.
func (uc *LifecycleUseCase) Complete(ctx context.Context, transportID int64) (*Result, error) {
	return uc.e.mutate(ctx, "complete", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.Complete()
		if err != nil {
			return err
		}
		t.Lifecycle = next
		x.putTransport(t, domain.UpdateStatus)
		return nil
	})
}

// Reopen is the manual correction COMPLETED -> ONGOING. The trailer is
// re-checked since another transport may have taken it meanwhile.
func (uc *LifecycleUseCase) Reopen(ctx context.Context, transportID int64) (*Result, error) {
	return uc.e.mutate(ctx, "reopen", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.Reopen()
		if err != nil {
			return err
		}
		if t.TrailerID != nil {
			if c := uc.e.board.TrailerConflicts(*t.TrailerID, t.ID, t.TouchedDates()); c.Busy() {
				return trailerConflictErr(*t.TrailerID, c)
			}
		}
		t.Lifecycle = next
		x.putTransport(t, domain.UpdateStatus)
		return nil
	})
}

// Hold parks an ACTIVE transport. It leaves every slot, loses its ETAs and
// releases its trailer. A dispatched transport needs the detach
// acknowledgment.
func (uc *LifecycleUseCase) Hold(ctx context.Context, transportID int64, ack Acknowledgements) (*Result, error) {
	return uc.e.mutate(ctx, "hold", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		if err := x.ensureTransportDates(ctx, transportID); err != nil {
			return err
		}
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.Hold()
		if err != nil {
			return err
		}
		if t.Lifecycle.Dispatch().Dispatched() && !ack.DetachDispatched {
			return detachRequiredErr([]int64{t.ID},
				"transport %d is dispatched; putting it on hold detaches it from driver and truck", t.ID)
		}

		x.removeEverywhere(t.ID)
		t.ClearETAs()
		t.Lifecycle = next
		t.TrailerID = nil
		x.putTransport(t, domain.UpdateStatus)
		return nil
	})
}

// Reactivate brings an ON_HOLD transport back with a fresh date plan. It
// re-enters the unassigned pool of its new planning dates.
func (uc *LifecycleUseCase) Reactivate(ctx context.Context, transportID int64, plan domain.DatePlan) (*Result, error) {
	return uc.e.mutate(ctx, "reactivate", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.Reactivate()
		if err != nil {
			return err
		}
		if err := t.ApplyPlan(plan); err != nil {
			return err
		}
		t.Lifecycle = next
		x.putTransport(t, domain.UpdateStatus)
		return nil
	})
}

// Delete marks the transport deleted from any state. Assignments are released;
// the trailer reference is kept for history but no longer blocks anything.
func (uc *LifecycleUseCase) Delete(ctx context.Context, transportID int64, ack Acknowledgements) (*Result, error) {
	return uc.e.mutate(ctx, "delete_transport", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		if err := x.ensureTransportDates(ctx, transportID); err != nil {
			return err
		}
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.Delete()
		if err != nil {
			return err
		}
		if t.Lifecycle.Dispatch().Dispatched() && !ack.DetachDispatched {
			return detachRequiredErr([]int64{t.ID},
				"transport %d is dispatched; deleting it detaches it from driver and truck", t.ID)
		}

		x.removeEverywhere(t.ID)
		t.ClearETAs()
		t.Lifecycle = next
		x.putTransport(t, domain.UpdateDeleted)
		uc.logger.Info("Transport deleted", zap.Int64("transport_id", t.ID))
		return nil
	})
}
