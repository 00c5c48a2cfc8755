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

type transportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTransportRepository(db *DB) repository.TransportRepository {
	return &transportRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

const transportColumns = `
	id, reference, type, container_ref, container_subtype, needs_trailer, adr,
	departure_date, return_date, trailer_id,
	state, current_status, sent_to_driver,
	cut_type, cut_date, cut_end_date, cut_location_id, cut_location_text, cut_notes,
	notes, version, created_at, updated_at`

// transportRow - строка таблицы transports
type transportRow struct {
	ID               int64        `db:"id"`
	Reference        string       `db:"reference"`
	Type             string       `db:"type"`
	ContainerRef     *string      `db:"container_ref"`
	ContainerSubtype string       `db:"container_subtype"`
	NeedsTrailer     bool         `db:"needs_trailer"`
	ADR              bool         `db:"adr"`
	DepartureDate    *domain.Date `db:"departure_date"`
	ReturnDate       *domain.Date `db:"return_date"`
	TrailerID        *int64       `db:"trailer_id"`
	State            string       `db:"state"`
	CurrentStatus    string       `db:"current_status"`
	SentToDriver     bool         `db:"sent_to_driver"`
	CutType          *string      `db:"cut_type"`
	CutDate          *domain.Date `db:"cut_date"`
	CutEndDate       *domain.Date `db:"cut_end_date"`
	CutLocationID    *int64       `db:"cut_location_id"`
	CutLocationText  string       `db:"cut_location_text"`
	CutNotes         string       `db:"cut_notes"`
	Notes            string       `db:"notes"`
	Version          int64        `db:"version"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

type destinationRow struct {
	TransportID int64       `db:"transport_id"`
	Order       int         `db:"dest_order"`
	LocationRef string      `db:"location_ref"`
	Date        domain.Date `db:"date"`
	Time        *string     `db:"time"`
	ETA         *time.Time  `db:"eta"`
}

func (row *transportRow) toDomain() (*domain.Transport, error) {
	var cut *domain.CutInfo
	if row.CutType != nil {
		cut = &domain.CutInfo{
			Type:         domain.CutType(*row.CutType),
			EndDate:      row.CutEndDate,
			LocationID:   row.CutLocationID,
			LocationText: row.CutLocationText,
			Notes:        row.CutNotes,
		}
		if row.CutDate != nil {
			cut.CutDate = *row.CutDate
		}
	}
	lc, err := domain.RestoreLifecycle(
		domain.LifecycleState(row.State),
		domain.DispatchState{Status: domain.CurrentStatus(row.CurrentStatus), SentToDriver: row.SentToDriver},
		cut,
	)
	if err != nil {
		return nil, err
	}
	return &domain.Transport{
		ID:               row.ID,
		Reference:        row.Reference,
		Type:             domain.TransportType(row.Type),
		ContainerRef:     row.ContainerRef,
		ContainerSubtype: row.ContainerSubtype,
		NeedsTrailer:     row.NeedsTrailer,
		ADR:              row.ADR,
		DepartureDate:    row.DepartureDate,
		ReturnDate:       row.ReturnDate,
		TrailerID:        row.TrailerID,
		Lifecycle:        lc,
		Notes:            row.Notes,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		Destinations:     []domain.Destination{},
	}, nil
}

// lifecycleArgs flattens the lifecycle variant into its columns.
func lifecycleArgs(l domain.Lifecycle) []interface{} {
	var (
		cutType      *string
		cutDate      *domain.Date
		endDate      *domain.Date
		locationID   *int64
		locationText string
		notes        string
	)
	if c := l.Cut(); c != nil {
		typ := string(c.Type)
		cutType = &typ
		d := c.CutDate
		cutDate = &d
		endDate = c.EndDate
		locationID = c.LocationID
		locationText = c.LocationText
		notes = c.Notes
	}
	return []interface{}{
		string(l.State()), string(l.CurrentStatus()), l.SentToDriver(),
		cutType, cutDate, endDate, locationID, locationText, notes,
	}
}

func (r *transportRepository) GetByID(ctx context.Context, id int64) (*domain.Transport, error) {
	out, err := selectTransports(ctx, r.db, `SELECT `+transportColumns+` FROM transports WHERE id = $1`, id)
	if err != nil {
		return nil, dbErr(r.logger, "Failed to get transport", err, zap.Int64("transport_id", id))
	}
	if len(out) == 0 {
		return nil, errors.NotFound(errors.CodeTransportNotFound, "transport %d not found", id)
	}
	return out[0], nil
}

func (r *transportRepository) ListOpen(ctx context.Context) ([]*domain.Transport, error) {
	out, err := selectTransports(ctx, r.db,
		`SELECT `+transportColumns+` FROM transports WHERE state <> 'deleted' ORDER BY id`)
	if err != nil {
		return nil, dbErr(r.logger, "Failed to list open transports", err)
	}
	return out, nil
}

func (r *transportRepository) ListByDate(ctx context.Context, date domain.Date) ([]*domain.Transport, error) {
	out, err := selectTransports(ctx, r.db, `
		SELECT `+transportColumns+`
		FROM transports
		WHERE id IN (SELECT transport_id FROM transport_destinations WHERE date = $1)
		ORDER BY id`, date)
	if err != nil {
		return nil, dbErr(r.logger, "Failed to list transports by date", err, zap.String("date", date.String()))
	}
	return out, nil
}

func (r *transportRepository) Create(ctx context.Context, t *domain.Transport) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbErr(r.logger, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	args := []interface{}{
		t.Reference, string(t.Type), t.ContainerRef, t.ContainerSubtype, t.NeedsTrailer, t.ADR,
		t.DepartureDate, t.ReturnDate, t.TrailerID,
	}
	args = append(args, lifecycleArgs(t.Lifecycle)...)
	args = append(args, t.Notes)

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO transports (
			reference, type, container_ref, container_subtype, needs_trailer, adr,
			departure_date, return_date, trailer_id,
			state, current_status, sent_to_driver,
			cut_type, cut_date, cut_end_date, cut_location_id, cut_location_text, cut_notes,
			notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, version, created_at, updated_at`, args...,
	).Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return errors.NotFound(errors.CodeTrailerNotFound, "trailer not found")
	}
	if err != nil {
		return dbErr(r.logger, "Failed to create transport", err, zap.String("reference", t.Reference))
	}
	if err := insertDestinations(ctx, tx, t); err != nil {
		return dbErr(r.logger, "Failed to store destinations", err, zap.Int64("transport_id", t.ID))
	}
	if err := tx.Commit(); err != nil {
		return dbErr(r.logger, "Failed to commit transport", err)
	}
	return nil
}

// updateTransport writes t if its stored version still equals t.Version.
func updateTransport(ctx context.Context, tx *sqlx.Tx, t *domain.Transport) error {
	args := []interface{}{t.ID, t.Version, t.ContainerRef, t.ContainerSubtype, t.NeedsTrailer, t.ADR,
		t.DepartureDate, t.ReturnDate, t.TrailerID}
	args = append(args, lifecycleArgs(t.Lifecycle)...)
	args = append(args, t.Notes)

	res, err := tx.ExecContext(ctx, `
		UPDATE transports SET
			container_ref = $3, container_subtype = $4, needs_trailer = $5, adr = $6,
			departure_date = $7, return_date = $8, trailer_id = $9,
			state = $10, current_status = $11, sent_to_driver = $12,
			cut_type = $13, cut_date = $14, cut_end_date = $15,
			cut_location_id = $16, cut_location_text = $17, cut_notes = $18,
			notes = $19, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return versionErr(ctx, tx, "transports", t.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transport_destinations WHERE transport_id = $1`, t.ID); err != nil {
		return err
	}
	return insertDestinations(ctx, tx, t)
}

func insertDestinations(ctx context.Context, tx *sqlx.Tx, t *domain.Transport) error {
	for _, d := range t.Destinations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transport_destinations (transport_id, dest_order, location_ref, date, time, eta)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, d.Order, d.LocationRef, d.Date, d.Time, d.ETA)
		if err != nil {
			return err
		}
	}
	return nil
}

// selectTransports loads rows plus their destinations in two queries.
func selectTransports(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) ([]*domain.Transport, error) {
	var rows []transportRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]*domain.Transport, 0, len(rows))
	byID := make(map[int64]*domain.Transport, len(rows))
	ids := make([]int64, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	var dests []destinationRow
	err := sqlx.SelectContext(ctx, q, &dests, `
		SELECT transport_id, dest_order, location_ref, date, time, eta
		FROM transport_destinations
		WHERE transport_id = ANY($1)
		ORDER BY transport_id, dest_order`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, d := range dests {
		t := byID[d.TransportID]
		t.Destinations = append(t.Destinations, domain.Destination{
			Order:       d.Order,
			LocationRef: d.LocationRef,
			Date:        d.Date,
			Time:        d.Time,
			ETA:         d.ETA,
		})
	}
	return out, nil
}
