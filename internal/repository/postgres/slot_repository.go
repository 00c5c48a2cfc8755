package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/errors"
)

type slotRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSlotRepository(db *DB) repository.SlotRepository {
	return &slotRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

const slotColumns = `id, date, slot_number, driver_id, truck_id, driver_start_note, version`

type slotRow struct {
	ID              int64       `db:"id"`
	Date            domain.Date `db:"date"`
	SlotNumber      int         `db:"slot_number"`
	DriverID        *int64      `db:"driver_id"`
	TruckID         *int64      `db:"truck_id"`
	DriverStartNote string      `db:"driver_start_note"`
	Version         int64       `db:"version"`
}

type assignmentRow struct {
	SlotID int64 `db:"slot_id"`
	domain.SlotAssignment
}

func (r *slotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	out, err := selectSlots(ctx, r.db, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	if err != nil {
		return nil, dbErr(r.logger, "Failed to get slot", err, zap.Int64("slot_id", id))
	}
	if len(out) == 0 {
		return nil, errors.NotFound(errors.CodeSlotNotFound, "slot %d not found", id)
	}
	return out[0], nil
}

func (r *slotRepository) ListByDate(ctx context.Context, date domain.Date) ([]*domain.Slot, error) {
	return r.ListRange(ctx, date, date)
}

func (r *slotRepository) ListRange(ctx context.Context, from, to domain.Date) ([]*domain.Slot, error) {
	out, err := selectSlots(ctx, r.db, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, slot_number, id`, from, to)
	if err != nil {
		return nil, dbErr(r.logger, "Failed to list slots", err,
			zap.String("from", from.String()), zap.String("to", to.String()))
	}
	return out, nil
}

func (r *slotRepository) ListByTransport(ctx context.Context, transportID int64) ([]*domain.Slot, error) {
	out, err := selectSlots(ctx, r.db, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id IN (SELECT slot_id FROM slot_assignments WHERE transport_id = $1)
		ORDER BY date, slot_number, id`, transportID)
	if err != nil {
		return nil, dbErr(r.logger, "Failed to list slots of transport", err, zap.Int64("transport_id", transportID))
	}
	return out, nil
}

func (r *slotRepository) Create(ctx context.Context, s *domain.Slot) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO slots (date, slot_number, driver_id, truck_id, driver_start_note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version`,
		s.Date, s.SlotNumber, s.DriverID, s.TruckID, s.DriverStartNote,
	).Scan(&s.ID, &s.Version)
	if pgCode(err) == pgForeignKeyViolation {
		return errors.InvalidInput(errors.CodeInvalidInput, "slot references a missing driver or truck")
	}
	if err != nil {
		return dbErr(r.logger, "Failed to create slot", err, zap.String("date", s.Date.String()))
	}
	if s.Assignments == nil {
		s.Assignments = []domain.SlotAssignment{}
	}
	return nil
}

// updateSlot writes the slot row if its stored version still equals
// s.Version. Assignments are written separately.
func updateSlot(ctx context.Context, tx *sqlx.Tx, s *domain.Slot) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE slots SET
			slot_number = $3, driver_id = $4, truck_id = $5, driver_start_note = $6,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version, s.SlotNumber, s.DriverID, s.TruckID, s.DriverStartNote)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return versionErr(ctx, tx, "slots", s.ID)
	}
	return nil
}

func insertAssignments(ctx context.Context, tx *sqlx.Tx, s *domain.Slot) error {
	for _, a := range s.Assignments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slot_assignments (slot_id, transport_id, slot_order, date, assigned_at)
			VALUES ($1, $2, $3, $4, $5)`,
			s.ID, a.TransportID, a.SlotOrder, s.Date, a.AssignedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func selectSlots(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) ([]*domain.Slot, error) {
	var rows []slotRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]*domain.Slot, 0, len(rows))
	byID := make(map[int64]*domain.Slot, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		s := &domain.Slot{
			ID:              row.ID,
			Date:            row.Date,
			SlotNumber:      row.SlotNumber,
			DriverID:        row.DriverID,
			TruckID:         row.TruckID,
			DriverStartNote: row.DriverStartNote,
			Version:         row.Version,
			Assignments:     []domain.SlotAssignment{},
		}
		out = append(out, s)
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	var assignments []assignmentRow
	err := sqlx.SelectContext(ctx, q, &assignments, `
		SELECT slot_id, transport_id, slot_order, date, assigned_at
		FROM slot_assignments
		WHERE slot_id = ANY($1)
		ORDER BY slot_id, slot_order`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		s := byID[a.SlotID]
		s.Assignments = append(s.Assignments, a.SlotAssignment)
	}
	for _, s := range out {
		s.Normalize()
	}
	return out, nil
}
