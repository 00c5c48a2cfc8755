package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/errors"
)

type resourceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewResourceRepository(db *DB) repository.ResourceRepository {
	return &resourceRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

// ---- drivers ----

func (r *resourceRepository) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	var drivers []*domain.Driver
	if err := r.db.SelectContext(ctx, &drivers, `SELECT id, name, adr, created_at FROM drivers ORDER BY id`); err != nil {
		return nil, dbErr(r.logger, "Failed to list drivers", err)
	}
	return drivers, nil
}

func (r *resourceRepository) GetDriver(ctx context.Context, id int64) (*domain.Driver, error) {
	var d domain.Driver
	err := r.db.GetContext(ctx, &d, `SELECT id, name, adr, created_at FROM drivers WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", id)
	}
	if err != nil {
		return nil, dbErr(r.logger, "Failed to get driver", err, zap.Int64("driver_id", id))
	}
	return &d, nil
}

func (r *resourceRepository) CreateDriver(ctx context.Context, d *domain.Driver) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO drivers (name, adr) VALUES ($1, $2) RETURNING id, created_at`,
		d.Name, d.ADR,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return dbErr(r.logger, "Failed to create driver", err)
	}
	return nil
}

func (r *resourceRepository) UpdateDriver(ctx context.Context, d *domain.Driver) error {
	err := r.db.QueryRowxContext(ctx,
		`UPDATE drivers SET name = $2, adr = $3 WHERE id = $1 RETURNING created_at`,
		d.ID, d.Name, d.ADR,
	).Scan(&d.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", d.ID)
	}
	if err != nil {
		return dbErr(r.logger, "Failed to update driver", err, zap.Int64("driver_id", d.ID))
	}
	return nil
}

func (r *resourceRepository) DeleteDriver(ctx context.Context, id int64) error {
	return r.delete(ctx, "drivers", id, errors.CodeDriverNotFound, "driver")
}

// ---- trucks ----

func (r *resourceRepository) ListTrucks(ctx context.Context) ([]*domain.Truck, error) {
	var trucks []*domain.Truck
	if err := r.db.SelectContext(ctx, &trucks, `SELECT id, name, plate, genset, created_at FROM trucks ORDER BY id`); err != nil {
		return nil, dbErr(r.logger, "Failed to list trucks", err)
	}
	return trucks, nil
}

func (r *resourceRepository) GetTruck(ctx context.Context, id int64) (*domain.Truck, error) {
	var t domain.Truck
	err := r.db.GetContext(ctx, &t, `SELECT id, name, plate, genset, created_at FROM trucks WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", id)
	}
	if err != nil {
		return nil, dbErr(r.logger, "Failed to get truck", err, zap.Int64("truck_id", id))
	}
	return &t, nil
}

func (r *resourceRepository) CreateTruck(ctx context.Context, t *domain.Truck) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO trucks (name, plate, genset) VALUES ($1, $2, $3) RETURNING id, created_at`,
		t.Name, t.Plate, t.Genset,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return dbErr(r.logger, "Failed to create truck", err)
	}
	return nil
}

func (r *resourceRepository) UpdateTruck(ctx context.Context, t *domain.Truck) error {
	err := r.db.QueryRowxContext(ctx,
		`UPDATE trucks SET name = $2, plate = $3, genset = $4 WHERE id = $1 RETURNING created_at`,
		t.ID, t.Name, t.Plate, t.Genset,
	).Scan(&t.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", t.ID)
	}
	if err != nil {
		return dbErr(r.logger, "Failed to update truck", err, zap.Int64("truck_id", t.ID))
	}
	return nil
}

func (r *resourceRepository) DeleteTruck(ctx context.Context, id int64) error {
	return r.delete(ctx, "trucks", id, errors.CodeTruckNotFound, "truck")
}

// ---- trailers ----

func (r *resourceRepository) ListTrailers(ctx context.Context) ([]*domain.Trailer, error) {
	var trailers []*domain.Trailer
	if err := r.db.SelectContext(ctx, &trailers, `SELECT id, name, plate, genset, created_at FROM trailers ORDER BY id`); err != nil {
		return nil, dbErr(r.logger, "Failed to list trailers", err)
	}
	return trailers, nil
}

func (r *resourceRepository) GetTrailer(ctx context.Context, id int64) (*domain.Trailer, error) {
	var t domain.Trailer
	err := r.db.GetContext(ctx, &t, `SELECT id, name, plate, genset, created_at FROM trailers WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", id)
	}
	if err != nil {
		return nil, dbErr(r.logger, "Failed to get trailer", err, zap.Int64("trailer_id", id))
	}
	return &t, nil
}

func (r *resourceRepository) CreateTrailer(ctx context.Context, t *domain.Trailer) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO trailers (name, plate, genset) VALUES ($1, $2, $3) RETURNING id, created_at`,
		t.Name, t.Plate, t.Genset,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return dbErr(r.logger, "Failed to create trailer", err)
	}
	return nil
}

func (r *resourceRepository) UpdateTrailer(ctx context.Context, t *domain.Trailer) error {
	err := r.db.QueryRowxContext(ctx,
		`UPDATE trailers SET name = $2, plate = $3, genset = $4 WHERE id = $1 RETURNING created_at`,
		t.ID, t.Name, t.Plate, t.Genset,
	).Scan(&t.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", t.ID)
	}
	if err != nil {
		return dbErr(r.logger, "Failed to update trailer", err, zap.Int64("trailer_id", t.ID))
	}
	return nil
}

func (r *resourceRepository) DeleteTrailer(ctx context.Context, id int64) error {
	return r.delete(ctx, "trailers", id, errors.CodeTrailerNotFound, "trailer")
}

// delete removes a resource row; a foreign key hit means slots or
// transports still point at it.
func (r *resourceRepository) delete(ctx context.Context, table string, id int64, notFound, noun string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if pgCode(err) == pgForeignKeyViolation {
		return errors.Conflict(errors.CodeResourceInUse, "%s %d is still referenced", noun, id)
	}
	if err != nil {
		return dbErr(r.logger, "Failed to delete resource", err, zap.String("table", table), zap.Int64("id", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(notFound, "%s %d not found", noun, id)
	}
	return nil
}
