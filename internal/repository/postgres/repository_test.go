package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
	"github.com/dispatch-board/internal/repository/postgres/testhelpers"
)

// RepositoryTestSuite runs the adapters against a real database.
type RepositoryTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDB
	repos  testhelpers.Repositories
	ctx    context.Context
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

// SetupSuite runs once before all tests in the suite
func (s *RepositoryTestSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDB(s.T())

	err := testhelpers.ResetSchema(s.testDB.DB.DB, "../../../migrations")
	s.Require().NoError(err, "Failed to apply migrations")

	s.repos = testhelpers.NewRepositoriesForTest(s.testDB.DB, s.testDB.Logger)
}

// TearDownSuite runs once after all tests in the suite
func (s *RepositoryTestSuite) TearDownSuite() {
	if s.testDB != nil {
		s.testDB.Close()
	}
}

// SetupTest runs before each test
func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.testDB.Cleanup(s.ctx))
}

var (
	june1 = domain.MustDate("2024-06-01")
	june2 = domain.MustDate("2024-06-02")
	june3 = domain.MustDate("2024-06-03")
)

func (s *RepositoryTestSuite) newTransport(trailerID *int64, dates ...domain.Date) *domain.Transport {
	t := &domain.Transport{
		Reference: "IMP-" + time.Now().Format("150405.000000"),
		Type:      domain.TransportImport,
		Lifecycle: domain.NewLifecycle(),
		TrailerID: trailerID,
	}
	for i, d := range dates {
		t.Destinations = append(t.Destinations, domain.Destination{Order: i + 1, LocationRef: "ANR", Date: d})
	}
	s.Require().NoError(s.repos.Transports.Create(s.ctx, t))
	return t
}

func (s *RepositoryTestSuite) newSlot(date domain.Date, number int) *domain.Slot {
	sl := &domain.Slot{Date: date, SlotNumber: number}
	s.Require().NoError(s.repos.Slots.Create(s.ctx, sl))
	return sl
}

// ============================================================================
// Resources
// ============================================================================

func (s *RepositoryTestSuite) TestDriverCRUD() {
	d := &domain.Driver{Name: "Jo", ADR: true}
	s.Require().NoError(s.repos.Resources.CreateDriver(s.ctx, d))
	s.NotZero(d.ID)
	s.False(d.CreatedAt.IsZero())

	d.Name = "Jo B."
	s.Require().NoError(s.repos.Resources.UpdateDriver(s.ctx, d))

	got, err := s.repos.Resources.GetDriver(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Jo B.", got.Name)
	s.True(got.ADR)

	list, err := s.repos.Resources.ListDrivers(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)

	s.Require().NoError(s.repos.Resources.DeleteDriver(s.ctx, d.ID))
	_, err = s.repos.Resources.GetDriver(s.ctx, d.ID)
	s.Equal(errors.CodeDriverNotFound, errors.CodeOf(err))

	err = s.repos.Resources.UpdateDriver(s.ctx, &domain.Driver{ID: 999, Name: "x"})
	s.Equal(errors.KindNotFound, errors.KindOf(err))
}

func (s *RepositoryTestSuite) TestReferencedTruckCannotBeDeleted() {
	tk := &domain.Truck{Name: "DAF", Plate: "AB-12-CD", Genset: true}
	s.Require().NoError(s.repos.Resources.CreateTruck(s.ctx, tk))

	sl := &domain.Slot{Date: june1, SlotNumber: 1, TruckID: &tk.ID}
	s.Require().NoError(s.repos.Slots.Create(s.ctx, sl))

	err := s.repos.Resources.DeleteTruck(s.ctx, tk.ID)
	s.Equal(errors.KindConflict, errors.KindOf(err))
	s.Equal(errors.CodeResourceInUse, errors.CodeOf(err))

	err = s.repos.Resources.DeleteTrailer(s.ctx, 12345)
	s.Equal(errors.CodeTrailerNotFound, errors.CodeOf(err))
}

// ============================================================================
// Transports
// ============================================================================

func (s *RepositoryTestSuite) TestTransportRoundTrip() {
	r := &domain.Trailer{Name: "Chassis 4"}
	s.Require().NoError(s.repos.Resources.CreateTrailer(s.ctx, r))

	created := s.newTransport(&r.ID, june1, june2)
	s.Equal(int64(1), created.Version)

	got, err := s.repos.Transports.GetByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Reference, got.Reference)
	s.Equal(r.ID, *got.TrailerID)
	s.Require().Len(got.Destinations, 2)
	s.Equal(june2, got.Destinations[1].Date)
	s.Equal(domain.CurrentPlanned, got.Lifecycle.CurrentStatus())

	byDate, err := s.repos.Transports.ListByDate(s.ctx, june2)
	s.Require().NoError(err)
	s.Require().Len(byDate, 1)
	s.Equal(created.ID, byDate[0].ID)

	_, err = s.repos.Transports.GetByID(s.ctx, created.ID+100)
	s.Equal(errors.CodeTransportNotFound, errors.CodeOf(err))
}

func (s *RepositoryTestSuite) TestLifecycleSurvivesStorage() {
	t := s.newTransport(nil, june1, june2)

	eta := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	l, err := t.Lifecycle.SendToDriver()
	s.Require().NoError(err)
	t.Lifecycle = l
	s.Require().NoError(t.SetETA(1, &eta))
	s.Require().NoError(s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{Transports: []*domain.Transport{t}}))
	s.Equal(int64(2), t.Version)

	got, err := s.repos.Transports.GetByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(domain.CurrentOngoing, got.Lifecycle.CurrentStatus())
	s.True(got.Lifecycle.SentToDriver())
	s.Require().NotNil(got.Destinations[0].ETA)
	s.True(eta.Equal(*got.Destinations[0].ETA))

	got.ClearETAs()
	got.Lifecycle = got.Lifecycle.Detach()
	cut, err := got.Lifecycle.CutOff(domain.CutInfo{Type: domain.CutContainer, CutDate: june1, LocationText: "Yard"})
	s.Require().NoError(err)
	got.Lifecycle = cut
	s.Require().NoError(s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{Transports: []*domain.Transport{got}}))

	again, err := s.repos.Transports.GetByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.True(again.Lifecycle.IsSuspended())
	s.Equal("Yard", again.Lifecycle.Cut().LocationText)

	deleted, err := again.Lifecycle.Delete()
	s.Require().NoError(err)
	again.Lifecycle = deleted
	s.Require().NoError(s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{Transports: []*domain.Transport{again}}))

	open, err := s.repos.Transports.ListOpen(s.ctx)
	s.Require().NoError(err)
	s.Empty(open)
}

// ============================================================================
// Slots and the unit of work
// ============================================================================

func (s *RepositoryTestSuite) TestMoveBetweenSlotsOfOneDate() {
	t := s.newTransport(nil, june1)
	a := s.newSlot(june1, 1)
	b := s.newSlot(june1, 2)

	a.Append(t.ID, time.Now().UTC())
	s.Require().NoError(s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{Slots: []*domain.Slot{a}}))
	s.Equal(int64(2), a.Version)

	a.Remove(t.ID)
	b.Append(t.ID, time.Now().UTC())
	s.Require().NoError(s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{Slots: []*domain.Slot{a, b}}))

	slots, err := s.repos.Slots.ListByDate(s.ctx, june1)
	s.Require().NoError(err)
	s.Require().Len(slots, 2)
	s.Empty(slots[0].Assignments)
	s.Equal([]int64{t.ID}, slots[1].TransportIDs())

	mine, err := s.repos.Slots.ListByTransport(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(b.ID, mine[0].ID)
}

func (s *RepositoryTestSuite) TestStaleVersionRollsBackEverything() {
	t := s.newTransport(nil, june1)
	sl := s.newSlot(june1, 1)

	stale := sl.Clone()
	sl.DriverStartNote = "first"
	s.Require().NoError(s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{Slots: []*domain.Slot{sl}}))

	t.Notes = "should not persist"
	stale.DriverStartNote = "second"
	err := s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{
		Transports: []*domain.Transport{t},
		Slots:      []*domain.Slot{stale},
	})
	s.Equal(errors.ErrConcurrentModification.Code, errors.CodeOf(err))
	s.Equal(int64(1), t.Version, "versions are only bumped on commit")

	got, err := s.repos.Transports.GetByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Empty(got.Notes)

	stored, err := s.repos.Slots.GetByID(s.ctx, sl.ID)
	s.Require().NoError(err)
	s.Equal("first", stored.DriverStartNote)
}

func (s *RepositoryTestSuite) TestDeleteAndRenumber() {
	first := s.newSlot(june3, 1)
	second := s.newSlot(june3, 2)

	second.SlotNumber = 1
	err := s.repos.UnitOfWork.Apply(s.ctx, &domain.ChangeSet{
		Slots:        []*domain.Slot{second},
		DeletedSlots: []*domain.Slot{first},
	})
	s.Require().NoError(err)

	slots, err := s.repos.Slots.ListRange(s.ctx, june1, june3)
	s.Require().NoError(err)
	s.Require().Len(slots, 1)
	s.Equal(second.ID, slots[0].ID)
	s.Equal(1, slots[0].SlotNumber)

	_, err = s.repos.Slots.GetByID(s.ctx, first.ID)
	s.Equal(errors.CodeSlotNotFound, errors.CodeOf(err))
}
