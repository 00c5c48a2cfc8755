package repository

import (
	"context"

	"github.com/dispatch-board/internal/domain"
)

// ResourceRepository определяет CRUD для водителей, тягачей и прицепов
type ResourceRepository interface {
	ListDrivers(ctx context.Context) ([]*domain.Driver, error)
	GetDriver(ctx context.Context, id int64) (*domain.Driver, error)
	CreateDriver(ctx context.Context, d *domain.Driver) error
	UpdateDriver(ctx context.Context, d *domain.Driver) error
	DeleteDriver(ctx context.Context, id int64) error

	ListTrucks(ctx context.Context) ([]*domain.Truck, error)
	GetTruck(ctx context.Context, id int64) (*domain.Truck, error)
	CreateTruck(ctx context.Context, t *domain.Truck) error
	UpdateTruck(ctx context.Context, t *domain.Truck) error
	DeleteTruck(ctx context.Context, id int64) error

	ListTrailers(ctx context.Context) ([]*domain.Trailer, error)
	GetTrailer(ctx context.Context, id int64) (*domain.Trailer, error)
	CreateTrailer(ctx context.Context, t *domain.Trailer) error
	UpdateTrailer(ctx context.Context, t *domain.Trailer) error
	DeleteTrailer(ctx context.Context, id int64) error
}
