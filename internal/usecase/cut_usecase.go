package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

// CutRequest describes where and what was dropped.
type CutRequest struct {
	Type         domain.CutType
	CutDate      domain.Date
	LocationID   *int64
	LocationText string
	Notes        string
}

// CutPreview lists what the operator must clear before cutting.
type CutPreview struct {
	TransportID int64         `json:"transport_id"`
	CutDate     domain.Date   `json:"cut_date"`
	FutureDates []domain.Date `json:"future_dates"`
	// FutureSlots are the slot assignments after the cut date; they block
	// the cut until removed.
	FutureSlots []int64 `json:"future_slots"`
}

// CutUseCase suspends and restores transports.
type CutUseCase struct {
	e      *Engine
	logger *zap.Logger
}

func NewCutUseCase(e *Engine) *CutUseCase {
	return &CutUseCase{e: e, logger: e.logger.Named("cut")}
}

// PreviewCut reports every date strictly after cutDate among the
// destinations, the return date and the slot assignments of the transport.
func (uc *CutUseCase) PreviewCut(ctx context.Context, transportID int64, cutDate domain.Date) (*CutPreview, error) {
	if err := requireDate(cutDate); err != nil {
		return nil, err
	}
	var preview *CutPreview
	err := uc.e.view(ctx, uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		if err := x.ensureTransportDates(ctx, transportID); err != nil {
			return err
		}
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		preview = futurePlannings(x, t, cutDate)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preview, nil
}

func futurePlannings(x *tx, t *domain.Transport, cutDate domain.Date) *CutPreview {
	p := &CutPreview{TransportID: t.ID, CutDate: cutDate, FutureSlots: []int64{}}
	var dates []domain.Date
	for _, d := range t.Destinations {
		if d.Date.After(cutDate) {
			dates = append(dates, d.Date)
		}
	}
	if t.ReturnDate != nil && t.ReturnDate.After(cutDate) {
		dates = append(dates, *t.ReturnDate)
	}
	for _, s := range x.slotsOfTransport(t.ID) {
		if s.Date.After(cutDate) {
			dates = append(dates, s.Date)
			p.FutureSlots = append(p.FutureSlots, s.ID)
		}
	}
	p.FutureDates = domain.UniqueDates(dates)
	if p.FutureDates == nil {
		p.FutureDates = []domain.Date{}
	}
	return p
}

// Cut suspends an ACTIVE transport. Slot assignments after the cut date must
// be cleared first; the ones on or before it are released by the cut.
func (uc *CutUseCase) Cut(ctx context.Context, transportID int64, req CutRequest, ack Acknowledgements) (*Result, error) {
	if err := requireDate(req.CutDate); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, errors.InvalidInput(errors.CodeInvalidInput, "unknown cut type %q", req.Type)
	}

	return uc.e.mutate(ctx, "cut", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
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
		if err := cutCompatible(t, req.Type); err != nil {
			return err
		}
		if req.LocationID == nil && strings.TrimSpace(req.LocationText) == "" {
			return errors.InvalidInput(errors.CodeLocationRequired, "cut location is required")
		}

		preview := futurePlannings(x, t, req.CutDate)
		if len(preview.FutureSlots) > 0 {
			var slotDates []domain.Date
			for _, s := range x.slotsOfTransport(t.ID) {
				if s.Date.After(req.CutDate) {
					slotDates = append(slotDates, s.Date)
				}
			}
			return errors.InvalidState(errors.CodeFuturePlannings,
				"transport %d is still planned after %s on dates: %s",
				t.ID, req.CutDate, formatDates(slotDates)).
				WithDetails(map[string]interface{}{
					"dates":    dateStrings(slotDates),
					"slot_ids": preview.FutureSlots,
				})
		}
		if t.Lifecycle.Dispatch().Dispatched() && !ack.DetachDispatched {
			return detachRequiredErr([]int64{t.ID},
				"transport %d is dispatched; cutting it detaches it from driver and truck", t.ID)
		}

		next, err := t.Lifecycle.CutOff(domain.CutInfo{
			Type:         req.Type,
			CutDate:      req.CutDate,
			LocationID:   req.LocationID,
			LocationText: strings.TrimSpace(req.LocationText),
			Notes:        req.Notes,
		})
		if err != nil {
			return err
		}
		x.removeEverywhere(t.ID)
		t.ClearETAs()
		t.Lifecycle = next
		x.putTransport(t, domain.UpdateCut)

		uc.logger.Info("Transport cut",
			zap.Int64("transport_id", t.ID),
			zap.String("type", string(req.Type)),
			zap.String("cut_date", req.CutDate.String()))
		return nil
	})
}

// cutCompatible refuses to cut equipment the transport does not carry.
func cutCompatible(t *domain.Transport, typ domain.CutType) error {
	hasTrailer := t.TrailerID != nil
	hasContainer := t.ContainerRef != nil && strings.TrimSpace(*t.ContainerRef) != ""
	switch {
	case typ == domain.CutTrailer && !hasTrailer,
		typ == domain.CutBoth && !hasTrailer:
		return errors.InvalidState(errors.CodeCutTypeIncompatible,
			"transport %d has no trailer to cut", t.ID)
	case typ == domain.CutContainer && !hasContainer,
		typ == domain.CutBoth && !hasContainer:
		return errors.InvalidState(errors.CodeCutTypeIncompatible,
			"transport %d carries no container to cut", t.ID)
	}
	return nil
}

// Restore resolves the cut with an end date. The transport re-enters the
// unassigned pool for that date.
func (uc *CutUseCase) Restore(ctx context.Context, transportID int64, end domain.Date) (*Result, error) {
	if err := requireDate(end); err != nil {
		return nil, err
	}
	return uc.e.mutate(ctx, "restore", uc.e.transportKeys(ctx, transportID), func(ctx context.Context, x *tx) error {
		t, err := x.transport(ctx, transportID)
		if err != nil {
			return err
		}
		next, err := t.Lifecycle.Restore(end)
		if err != nil {
			return err
		}
		t.Lifecycle = next
		x.putTransport(t, domain.UpdateRestore)
		return nil
	})
}
