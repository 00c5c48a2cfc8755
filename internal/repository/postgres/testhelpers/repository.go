package testhelpers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/repository/postgres"
)

// Repositories bundles every postgres adapter over one test connection.
type Repositories struct {
	Resources  repository.ResourceRepository
	Transports repository.TransportRepository
	Slots      repository.SlotRepository
	UnitOfWork repository.UnitOfWork
}

// NewDBForTest creates a postgres.DB with test database and logger
func NewDBForTest(db *sqlx.DB, logger *zap.Logger) *postgres.DB {
	return postgres.NewDBForTest(db, logger)
}

// NewRepositoriesForTest wires the adapters over a test connection.
func NewRepositoriesForTest(db *sqlx.DB, logger *zap.Logger) Repositories {
	pgDB := NewDBForTest(db, logger)
	return Repositories{
		Resources:  postgres.NewResourceRepository(pgDB),
		Transports: postgres.NewTransportRepository(pgDB),
		Slots:      postgres.NewSlotRepository(pgDB),
		UnitOfWork: postgres.NewUnitOfWork(pgDB),
	}
}
