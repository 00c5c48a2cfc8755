package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

// TransportUseCase creates transports and edits their plan, ETAs and notes.
type TransportUseCase struct {
	e      *Engine
	logger *zap.Logger
}

func NewTransportUseCase(e *Engine) *TransportUseCase {
	return &TransportUseCase{e: e, logger: e.logger.Named("transport")}
}

// Create validates and stores a new ACTIVE / PLANNED transport without slots.
func (uc *TransportUseCase) Create(ctx context.Context, t *domain.Transport) (*Result, error) {
	if !t.Type.Valid() {
		return nil, errors.InvalidInput(errors.CodeInvalidInput, "unknown transport type %q", t.Type)
	}
	if strings.TrimSpace(t.Reference) == "" {
		return nil, errors.InvalidInput(errors.CodeInvalidInput, "reference is required")
	}
	if err := t.ValidateDestinations(); err != nil {
		return nil, err
	}
	for _, d := range t.Destinations {
		if d.ETA != nil {
			return nil, errors.InvalidInput(errors.CodeInvalidInput, "a new transport cannot carry ETAs")
		}
	}

	keys := staticKeys()
	if t.TrailerID != nil {
		keys = staticKeys(board.TrailerKey(*t.TrailerID))
	}
	return uc.e.mutate(ctx, "create_transport", keys, func(ctx context.Context, x *tx) error {
		if t.TrailerID != nil {
			if _, ok := uc.e.board.Trailer(*t.TrailerID); !ok {
				return errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", *t.TrailerID)
			}
			if c := uc.e.board.TrailerConflicts(*t.TrailerID, 0, t.TouchedDates()); c.Busy() {
				return trailerConflictErr(*t.TrailerID, c)
			}
		}
		t.ID = 0
		t.Lifecycle = domain.NewLifecycle()
		if err := uc.e.transportRepo.Create(ctx, t); err != nil {
			return loadErr(err)
		}
		x.persisted = true
		x.putTransport(t.Clone(), domain.UpdateCreated)
		uc.logger.Info("Transport created",
			zap.Int64("transport_id", t.ID),
			zap.String("reference", t.Reference))
		return nil
	})
}

// Get returns the transport from the board, loading it if needed.
func (uc *TransportUseCase) Get(ctx context.Context, id int64) (*domain.Transport, error) {
	if t, ok := uc.e.board.Transport(id); ok {
		return t, nil
	}
	var out *domain.Transport
	err := uc.e.view(ctx, staticKeys(board.TransportKey(id)), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, id)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Replan re-dates an ACTIVE transport. Assignments must not remain on dates
// that leave the plan; an ONGOING transport re-checks its trailer over the new
// dates.
func (uc *TransportUseCase) Replan(ctx context.Context, transportID int64, plan domain.DatePlan) (*Result, error) {
	return uc.e.mutate(ctx, "replan", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
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
		if err := t.ApplyPlan(plan); err != nil {
			return err
		}

		var stranded []domain.Date
		for _, s := range x.slotsOfTransport(t.ID) {
			if !t.HasPlanningDate(s.Date) {
				stranded = append(stranded, s.Date)
			}
		}
		if len(stranded) > 0 {
			return errors.InvalidState(errors.CodePlannedDatesInUse,
				"transport %d is still assigned on dates leaving its plan: %s", t.ID, formatDates(stranded)).
				WithDetail("dates", dateStrings(stranded))
		}
		if t.TrailerID != nil && t.Lifecycle.CurrentStatus() == domain.CurrentOngoing {
			if c := uc.e.board.TrailerConflicts(*t.TrailerID, t.ID, t.TouchedDates()); c.Busy() {
				return trailerConflictErr(*t.TrailerID, c)
			}
		}
		x.putTransport(t, domain.UpdatePlan)
		return nil
	})
}

// SetETA sets or clears the ETA of one destination of a dispatched transport.
func (uc *TransportUseCase) SetETA(ctx context.Context, transportID int64, order int, eta *time.Time) (*Result, error) {
	return uc.e.mutate(ctx, "set_eta", staticKeys(board.TransportKey(transportID)), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		if err := t.Lifecycle.RequireSchedulable(); err != nil {
			return err
		}
		if !t.Lifecycle.SentToDriver() {
			return errors.InvalidState(errors.CodeETARequiresDispatch,
				"transport %d is not sent to a driver", t.ID)
		}
		if eta != nil {
			utc := eta.UTC()
			eta = &utc
		}
		if err := t.SetETA(order, eta); err != nil {
			return err
		}
		x.putTransport(t, domain.UpdateETA)
		return nil
	})
}

// UpdateNotes replaces the free-text notes of a live transport.
func (uc *TransportUseCase) UpdateNotes(ctx context.Context, transportID int64, notes string) (*Result, error) {
	return uc.e.mutate(ctx, "update_notes", staticKeys(board.TransportKey(transportID)), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		if t.Lifecycle.IsDeleted() {
			return errors.InvalidState(errors.CodeTransportDeleted, "transport %d is deleted", t.ID)
		}
		if t.Notes == notes {
			return nil
		}
		t.Notes = notes
		x.putTransport(t, domain.UpdateNotes)
		return nil
	})
}
