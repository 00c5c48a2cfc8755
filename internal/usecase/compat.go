package usecase

import (
	"strings"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

type compatWarning struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	TransportID int64  `json:"transport_id"`
}

// compatibility lists the ADR and genset mismatches of running transports
// with the given driver and truck. Either resource may be nil (not bound).
func (e *Engine) compatibility(driver *domain.Driver, truck *domain.Truck, transports []*domain.Transport) ([]compatWarning, error) {
	var out []compatWarning
	for _, t := range transports {
		if driver != nil && t.ADR && !driver.ADR {
			out = append(out, compatWarning{
				Code:        errors.CodeDriverNotADR,
				Message:     "driver " + driver.Name + " is not ADR certified",
				TransportID: t.ID,
			})
		}
		if truck == nil || truck.Genset || !t.RequiresGenset() {
			continue
		}
		trailerGenset := false
		if t.TrailerID != nil {
			trailer, ok := e.board.Trailer(*t.TrailerID)
			if !ok {
				return nil, errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", *t.TrailerID)
			}
			trailerGenset = trailer.Genset
		}
		if !trailerGenset {
			out = append(out, compatWarning{
				Code:        errors.CodeGensetUnavailable,
				Message:     "neither truck " + truck.Name + " nor the trailer supplies a genset",
				TransportID: t.ID,
			})
		}
	}
	return out, nil
}

func compatibilityErr(ws []compatWarning) error {
	msgs := make([]string, 0, len(ws))
	for _, w := range ws {
		msgs = append(msgs, w.Message)
	}
	return errors.CompatibilityWarning(ws[0].Code, "%s", strings.Join(msgs, "; ")).
		WithDetail("warnings", ws)
}

// slotResources resolves the driver and truck bound to s. A binding that
// points at a removed resource fails with NotFound.
func (e *Engine) slotResources(s *domain.Slot) (*domain.Driver, *domain.Truck, error) {
	var driver *domain.Driver
	var truck *domain.Truck
	if s.DriverID != nil {
		d, ok := e.board.Driver(*s.DriverID)
		if !ok {
			return nil, nil, errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", *s.DriverID)
		}
		driver = d
	}
	if s.TruckID != nil {
		t, ok := e.board.Truck(*s.TruckID)
		if !ok {
			return nil, nil, errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", *s.TruckID)
		}
		truck = t
	}
	return driver, truck, nil
}

func detachRequiredErr(transportIDs []int64, format string, args ...interface{}) error {
	return errors.ConfirmationRequired(errors.CodeDetachRequired, format, args...).
		WithDetail("transport_ids", transportIDs)
}
