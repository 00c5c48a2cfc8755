package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/errors"
)

type unitOfWork struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUnitOfWork(db *DB) repository.UnitOfWork {
	return &unitOfWork{
		db:     db.DB,
		logger: db.logger,
	}
}

// Apply commits the change set in one transaction. Every row update is
// guarded by its version; one mismatch rolls everything back.
func (u *unitOfWork) Apply(ctx context.Context, cs *domain.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbErr(u.logger, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := u.apply(ctx, tx, cs); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return errors.ErrConcurrentModification.Wrap(err)
		}
		return dbErr(u.logger, "Failed to apply change set", err,
			zap.Int("transports", len(cs.Transports)),
			zap.Int("slots", len(cs.Slots)),
			zap.Int("deleted_slots", len(cs.DeletedSlots)))
	}
	if err := tx.Commit(); err != nil {
		return dbErr(u.logger, "Failed to commit change set", err)
	}

	now := time.Now().UTC()
	for _, t := range cs.Transports {
		t.Version++
		t.UpdatedAt = now
	}
	for _, s := range cs.Slots {
		s.Version++
	}
	return nil
}

func (u *unitOfWork) apply(ctx context.Context, tx *sqlx.Tx, cs *domain.ChangeSet) error {
	for _, t := range cs.Transports {
		if err := updateTransport(ctx, tx, t); err != nil {
			return err
		}
	}

	// Assignments of every touched slot are cleared before any is rewritten
	// so a move between two slots of one date never trips the
	// (transport_id, date) key.
	touched := make([]int64, 0, len(cs.Slots)+len(cs.DeletedSlots))
	for _, s := range cs.Slots {
		touched = append(touched, s.ID)
	}
	for _, s := range cs.DeletedSlots {
		touched = append(touched, s.ID)
	}
	if len(touched) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM slot_assignments WHERE slot_id = ANY($1)`, pq.Array(touched)); err != nil {
			return err
		}
	}

	for _, s := range cs.DeletedSlots {
		res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = $1 AND version = $2`, s.ID, s.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return versionErr(ctx, tx, "slots", s.ID)
		}
	}
	for _, s := range cs.Slots {
		if err := updateSlot(ctx, tx, s); err != nil {
			return err
		}
		if err := insertAssignments(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

// versionErr tells a missing row from a stale version.
func versionErr(ctx context.Context, tx *sqlx.Tx, table string, id int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		if table == "slots" {
			return errors.NotFound(errors.CodeSlotNotFound, "slot %d not found", id)
		}
		return errors.NotFound(errors.CodeTransportNotFound, "transport %d not found", id)
	}
	return errors.ErrConcurrentModification.WithDetail("table", table).WithDetail("id", id)
}
