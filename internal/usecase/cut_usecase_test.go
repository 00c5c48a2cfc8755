package usecase

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

type CutSuite struct{ engineSuite }

func TestCutSuite(t *testing.T) {
	suite.Run(t, new(CutSuite))
}

func windowed(r *int64) func(*domain.Transport) {
	return func(t *domain.Transport) {
		dep, ret := day1, day3
		t.DepartureDate, t.ReturnDate = &dep, &ret
		t.TrailerID = r
	}
}

func (s *CutSuite) TestPreviewListsFutureDates() {
	tr := s.transport(windowed(nil), day1, day3)
	s.slot(day1, nil, nil, tr)
	future := s.slot(day2, nil, nil, tr)
	s.load()

	p, err := s.cut.PreviewCut(s.ctx, tr, day1)
	s.Require().NoError(err)
	s.Equal([]domain.Date{day2, day3}, p.FutureDates)
	s.Equal([]int64{future}, p.FutureSlots)

	p, err = s.cut.PreviewCut(s.ctx, tr, day3)
	s.Require().NoError(err)
	s.Empty(p.FutureDates)
}

func (s *CutSuite) TestCutRefusesWhileFutureAssignmentsRemain() {
	r := s.trailer("R", false)
	tr := s.transport(windowed(ptr(r)), day1, day3)
	today := s.slot(day1, nil, nil, tr)
	s.slot(day2, nil, nil, tr)
	other := s.transport(nil, day4)
	s.load()

	req := CutRequest{Type: domain.CutTrailer, CutDate: day1, LocationText: "Port gate 3"}
	_, err := s.cut.Cut(s.ctx, tr, req, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeFuturePlannings)
	s.Contains(err.Error(), "2024-06-02")
	s.Equal(domain.StateActive, s.getTransport(tr).Lifecycle.State())

	_, err = s.assign.Assign(s.ctx, tr, nil, day2, Acknowledgements{})
	s.Require().NoError(err)

	res, err := s.cut.Cut(s.ctx, tr, req, Acknowledgements{})
	s.Require().NoError(err)
	last := res.Events[len(res.Events)-1]
	s.Equal(domain.UpdateCut, last.Type)

	got := s.getTransport(tr)
	s.True(got.Lifecycle.IsSuspended())
	s.Equal(r, *got.TrailerID)
	s.True(s.getSlot(today).IsEmpty(), "a cut transport holds no slot")

	_, err = s.assign.BindTrailer(s.ctx, other, ptr(r), Acknowledgements{})
	s.requireErr(err, errors.KindConflict, errors.CodeTrailerBlockedByCut)

	_, err = s.cut.Cut(s.ctx, tr, req, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportCut)
}

func (s *CutSuite) TestCutValidation() {
	bare := s.transport(nil, day1)
	boxed := s.transport(func(t *domain.Transport) {
		c := "MSKU0000001"
		t.ContainerRef = &c
	}, day1)
	s.load()

	_, err := s.cut.Cut(s.ctx, bare, CutRequest{Type: domain.CutTrailer, CutDate: day1, LocationText: "x"}, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeCutTypeIncompatible)

	_, err = s.cut.Cut(s.ctx, bare, CutRequest{Type: domain.CutContainer, CutDate: day1, LocationText: "x"}, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeCutTypeIncompatible)

	_, err = s.cut.Cut(s.ctx, boxed, CutRequest{Type: domain.CutBoth, CutDate: day1, LocationText: "x"}, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeCutTypeIncompatible)

	_, err = s.cut.Cut(s.ctx, boxed, CutRequest{Type: domain.CutContainer, CutDate: day1, LocationText: "  "}, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidInput, errors.CodeLocationRequired)

	_, err = s.cut.Cut(s.ctx, boxed, CutRequest{Type: "PALLET", CutDate: day1, LocationText: "x"}, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidInput, errors.CodeInvalidInput)

	_, err = s.cut.Cut(s.ctx, boxed, CutRequest{Type: domain.CutContainer, CutDate: day1, LocationID: ptr(12)}, Acknowledgements{})
	s.Require().NoError(err)
	info := s.getTransport(boxed).Lifecycle.Cut()
	s.Require().NotNil(info)
	s.Equal(int64(12), *info.LocationID)
}

func (s *CutSuite) TestCutDispatchedNeedsAcknowledgment() {
	d := s.driver("Anna", true)
	tk := s.truck("Scania", true)
	r := s.trailer("R", false)
	tr := s.transport(func(t *domain.Transport) {
		t.TrailerID = ptr(r)
		t.Lifecycle = ongoing()
	}, day1)
	sl := s.slot(day1, ptr(d), ptr(tk), tr)
	s.load()

	req := CutRequest{Type: domain.CutTrailer, CutDate: day1, LocationText: "Depot"}
	_, err := s.cut.Cut(s.ctx, tr, req, Acknowledgements{})
	s.requireErr(err, errors.KindConfirmationRequired, errors.CodeDetachRequired)

	_, err = s.cut.Cut(s.ctx, tr, req, Acknowledgements{DetachDispatched: true})
	s.Require().NoError(err)
	s.True(s.getSlot(sl).IsEmpty())
	s.Equal(domain.CurrentPlanned, s.getTransport(tr).Lifecycle.CurrentStatus())
}

func (s *CutSuite) TestRestoreReturnsToPool() {
	r := s.trailer("R", false)
	tr := s.transport(func(t *domain.Transport) {
		c := "CMAU1111111"
		t.ContainerRef = &c
		t.TrailerID = ptr(r)
		t.Lifecycle = cutLifecycle(domain.CutBoth, day2)
	}, day2)
	other := s.transport(nil, day3)
	s.load()
	s.Empty(s.board.UnassignedPool(day2))

	_, err := s.cut.Restore(s.ctx, tr, day1)
	s.requireErr(err, errors.KindSequenceViolation, errors.CodeRestoreBeforeCut)

	res, err := s.cut.Restore(s.ctx, tr, day4)
	s.Require().NoError(err)
	s.Equal(domain.UpdateRestore, res.Events[0].Type)

	got := s.getTransport(tr)
	s.True(got.Lifecycle.IsRestored())
	s.Equal(domain.CurrentPlanned, got.Lifecycle.CurrentStatus())
	pool := s.board.UnassignedPool(day4)
	s.Require().Len(pool, 1)
	s.Equal(tr, pool[0].ID)

	_, err = s.assign.BindTrailer(s.ctx, other, ptr(r), Acknowledgements{})
	s.Require().NoError(err, "a resolved cut no longer blocks the trailer")

	_, err = s.cut.Restore(s.ctx, tr, day4)
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportNotCut)
}
