package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/errors"
)

// ResourceUseCase maintains the driver, truck and trailer registry.
type ResourceUseCase struct {
	e            *Engine
	resourceRepo repository.ResourceRepository
	logger       *zap.Logger
}

func NewResourceUseCase(e *Engine) *ResourceUseCase {
	return &ResourceUseCase{e: e, resourceRepo: e.resourceRepo, logger: e.logger.Named("resource")}
}

// ---- drivers ----

func (uc *ResourceUseCase) ListDrivers() []*domain.Driver { return uc.e.board.Drivers() }

func (uc *ResourceUseCase) GetDriver(id int64) (*domain.Driver, error) {
	d, ok := uc.e.board.Driver(id)
	if !ok {
		return nil, errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", id)
	}
	return d, nil
}

func (uc *ResourceUseCase) CreateDriver(ctx context.Context, d *domain.Driver) (*domain.Driver, error) {
	if err := requireName(d.Name); err != nil {
		return nil, err
	}
	if err := uc.resourceRepo.CreateDriver(ctx, d); err != nil {
		return nil, uc.storeErr("create driver", err)
	}
	uc.e.board.PutDriver(d)
	uc.publish(ctx, domain.EntityDriver, d.ID, d)
	return d, nil
}

func (uc *ResourceUseCase) UpdateDriver(ctx context.Context, d *domain.Driver) (*domain.Driver, error) {
	if err := requireName(d.Name); err != nil {
		return nil, err
	}
	unlock, err := uc.e.locks.Lock(ctx, board.DriverKey(d.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := uc.e.board.Driver(d.ID); !ok {
		return nil, errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", d.ID)
	}
	if err := uc.resourceRepo.UpdateDriver(ctx, d); err != nil {
		return nil, uc.storeErr("update driver", err)
	}
	uc.e.board.PutDriver(d)
	uc.publish(ctx, domain.EntityDriver, d.ID, d)
	return d, nil
}

// DeleteDriver refuses while any slot still binds the driver.
func (uc *ResourceUseCase) DeleteDriver(ctx context.Context, id int64) error {
	unlock, err := uc.e.locks.Lock(ctx, board.DriverKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := uc.e.board.Driver(id); !ok {
		return errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", id)
	}
	if uc.e.board.ReferencesDriver(id) {
		return errors.Conflict(errors.CodeResourceInUse, "driver %d is still bound to a slot", id)
	}
	if err := uc.resourceRepo.DeleteDriver(ctx, id); err != nil {
		return uc.storeErr("delete driver", err)
	}
	uc.e.board.RemoveDriver(id)
	uc.publish(ctx, domain.EntityDriver, id, map[string]interface{}{"id": id, "deleted": true})
	return nil
}

// ---- trucks ----

func (uc *ResourceUseCase) ListTrucks() []*domain.Truck { return uc.e.board.Trucks() }

func (uc *ResourceUseCase) GetTruck(id int64) (*domain.Truck, error) {
	t, ok := uc.e.board.Truck(id)
	if !ok {
		return nil, errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", id)
	}
	return t, nil
}

func (uc *ResourceUseCase) CreateTruck(ctx context.Context, t *domain.Truck) (*domain.Truck, error) {
	if err := requireName(t.Name); err != nil {
		return nil, err
	}
	if err := uc.resourceRepo.CreateTruck(ctx, t); err != nil {
		return nil, uc.storeErr("create truck", err)
	}
	uc.e.board.PutTruck(t)
	uc.publish(ctx, domain.EntityTruck, t.ID, t)
	return t, nil
}

func (uc *ResourceUseCase) UpdateTruck(ctx context.Context, t *domain.Truck) (*domain.Truck, error) {
	if err := requireName(t.Name); err != nil {
		return nil, err
	}
	unlock, err := uc.e.locks.Lock(ctx, board.TruckKey(t.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := uc.e.board.Truck(t.ID); !ok {
		return nil, errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", t.ID)
	}
	if err := uc.resourceRepo.UpdateTruck(ctx, t); err != nil {
		return nil, uc.storeErr("update truck", err)
	}
	uc.e.board.PutTruck(t)
	uc.publish(ctx, domain.EntityTruck, t.ID, t)
	return t, nil
}

func (uc *ResourceUseCase) DeleteTruck(ctx context.Context, id int64) error {
	unlock, err := uc.e.locks.Lock(ctx, board.TruckKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := uc.e.board.Truck(id); !ok {
		return errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", id)
	}
	if uc.e.board.ReferencesTruck(id) {
		return errors.Conflict(errors.CodeResourceInUse, "truck %d is still bound to a slot", id)
	}
	if err := uc.resourceRepo.DeleteTruck(ctx, id); err != nil {
		return uc.storeErr("delete truck", err)
	}
	uc.e.board.RemoveTruck(id)
	uc.publish(ctx, domain.EntityTruck, id, map[string]interface{}{"id": id, "deleted": true})
	return nil
}

// ---- trailers ----

func (uc *ResourceUseCase) ListTrailers() []*domain.Trailer { return uc.e.board.Trailers() }

func (uc *ResourceUseCase) GetTrailer(id int64) (*domain.Trailer, error) {
	t, ok := uc.e.board.Trailer(id)
	if !ok {
		return nil, errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", id)
	}
	return t, nil
}

func (uc *ResourceUseCase) CreateTrailer(ctx context.Context, t *domain.Trailer) (*domain.Trailer, error) {
	if err := requireName(t.Name); err != nil {
		return nil, err
	}
	if err := uc.resourceRepo.CreateTrailer(ctx, t); err != nil {
		return nil, uc.storeErr("create trailer", err)
	}
	uc.e.board.PutTrailer(t)
	uc.publish(ctx, domain.EntityTrailer, t.ID, t)
	return t, nil
}

func (uc *ResourceUseCase) UpdateTrailer(ctx context.Context, t *domain.Trailer) (*domain.Trailer, error) {
	if err := requireName(t.Name); err != nil {
		return nil, err
	}
	unlock, err := uc.e.locks.Lock(ctx, board.TrailerKey(t.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := uc.e.board.Trailer(t.ID); !ok {
		return nil, errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", t.ID)
	}
	if err := uc.resourceRepo.UpdateTrailer(ctx, t); err != nil {
		return nil, uc.storeErr("update trailer", err)
	}
	uc.e.board.PutTrailer(t)
	uc.publish(ctx, domain.EntityTrailer, t.ID, t)
	return t, nil
}

// DeleteTrailer refuses while any live transport references the trailer.
func (uc *ResourceUseCase) DeleteTrailer(ctx context.Context, id int64) error {
	unlock, err := uc.e.locks.Lock(ctx, board.TrailerKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := uc.e.board.Trailer(id); !ok {
		return errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", id)
	}
	if uc.e.board.ReferencesTrailer(id) {
		return errors.Conflict(errors.CodeResourceInUse, "trailer %d is still bound to a transport", id)
	}
	if err := uc.resourceRepo.DeleteTrailer(ctx, id); err != nil {
		return uc.storeErr("delete trailer", err)
	}
	uc.e.board.RemoveTrailer(id)
	uc.publish(ctx, domain.EntityTrailer, id, map[string]interface{}{"id": id, "deleted": true})
	return nil
}

// ---- helpers ----

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidInput(errors.CodeInvalidInput, "name is required")
	}
	return nil
}

func (uc *ResourceUseCase) storeErr(op string, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	uc.logger.Error("Resource store failed", zap.String("operation", op), zap.Error(err))
	return errors.ErrDatabaseError.Wrap(err)
}

// publish broadcasts a registry change on the date-less stream.
func (uc *ResourceUseCase) publish(ctx context.Context, kind domain.EntityKind, id int64, v interface{}) {
	snap, err := domain.Snapshot(v)
	if err != nil {
		uc.logger.Error("Failed to build resource event", zap.Error(err))
		return
	}
	uc.e.feed.Publish(domain.ChangeEvent{
		Entity:        kind,
		EntityID:      id,
		Type:          domain.UpdateResource,
		Snapshot:      snap,
		CorrelationID: domain.CorrelationIDFrom(ctx),
	})
}
