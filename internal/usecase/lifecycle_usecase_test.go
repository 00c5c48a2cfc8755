package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

type LifecycleSuite struct{ engineSuite }

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) TestDispatchRoundTrip() {
	d := s.driver("Anna", true)
	tk := s.truck("Scania", true)
	tr := s.transport(nil, day1)
	sl := s.slot(day1, nil, nil, tr)
	s.load()

	_, err := s.lifecycle.SendToDriver(s.ctx, tr)
	s.requireErr(err, errors.KindInvalidState, errors.CodeNotReadyForDispatch)

	_, err = s.assign.BindDriver(s.ctx, sl, ptr(d), Acknowledgements{})
	s.Require().NoError(err)
	_, err = s.assign.BindTruck(s.ctx, sl, ptr(tk), Acknowledgements{})
	s.Require().NoError(err)

	_, err = s.lifecycle.SendToDriver(s.ctx, tr)
	s.Require().NoError(err)
	got := s.getTransport(tr)
	s.Equal(domain.CurrentOngoing, got.Lifecycle.CurrentStatus())
	s.True(got.Lifecycle.SentToDriver())

	_, err = s.lifecycle.SendToDriver(s.ctx, tr)
	s.requireErr(err, errors.KindInvalidState, errors.CodeIllegalTransition)

	_, err = s.lifecycle.Complete(s.ctx, tr)
	s.Require().NoError(err)
	s.Equal(domain.CurrentCompleted, s.getTransport(tr).Lifecycle.CurrentStatus())

	_, err = s.lifecycle.Complete(s.ctx, tr)
	s.requireErr(err, errors.KindInvalidState, errors.CodeIllegalTransition)

	_, err = s.lifecycle.Reopen(s.ctx, tr)
	s.Require().NoError(err)
	s.Equal(domain.CurrentOngoing, s.getTransport(tr).Lifecycle.CurrentStatus())
}

func (s *LifecycleSuite) TestSendToDriverNeedsTrailerWhenRequired() {
	d := s.driver("Anna", true)
	tk := s.truck("Scania", true)
	tr := s.transport(func(t *domain.Transport) { t.NeedsTrailer = true }, day1)
	s.slot(day1, ptr(d), ptr(tk), tr)
	s.load()

	_, err := s.lifecycle.SendToDriver(s.ctx, tr)
	s.requireErr(err, errors.KindInvalidState, errors.CodeNotReadyForDispatch)
}

func (s *LifecycleSuite) TestSendToDriverChecksTrailer() {
	d := s.driver("Anna", true)
	tk := s.truck("Scania", true)
	r := s.trailer("R", false)
	s.transport(func(t *domain.Transport) {
		t.TrailerID = ptr(r)
		t.Lifecycle = ongoing()
	}, day1)
	waiting := s.transport(func(t *domain.Transport) { t.TrailerID = ptr(r) }, day1)
	s.slot(day1, ptr(d), ptr(tk), waiting)
	s.load()

	_, err := s.lifecycle.SendToDriver(s.ctx, waiting)
	s.requireErr(err, errors.KindConflict, errors.CodeTrailerInUse)
	s.Equal(domain.CurrentPlanned, s.getTransport(waiting).Lifecycle.CurrentStatus())
}

func (s *LifecycleSuite) TestETAChain() {
	planned := s.transport(nil, day1)
	tr := s.transport(func(t *domain.Transport) { t.Lifecycle = ongoing() }, day1, day2)
	s.load()
	eta := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	_, err := s.transports.SetETA(s.ctx, planned, 1, &eta)
	s.requireErr(err, errors.KindInvalidState, errors.CodeETARequiresDispatch)

	_, err = s.transports.SetETA(s.ctx, tr, 2, &eta)
	s.requireErr(err, errors.KindSequenceViolation, errors.CodeETAChain)

	res, err := s.transports.SetETA(s.ctx, tr, 1, &eta)
	s.Require().NoError(err)
	s.Require().Len(res.Events, 1)
	s.Equal(domain.UpdateETA, res.Events[0].Type)

	_, err = s.transports.SetETA(s.ctx, tr, 2, &eta)
	s.Require().NoError(err)
	s.True(s.getTransport(tr).ETAChainValid())

	_, err = s.transports.SetETA(s.ctx, tr, 1, nil)
	s.requireErr(err, errors.KindSequenceViolation, errors.CodeETASuccessorSet)

	_, err = s.transports.SetETA(s.ctx, tr, 2, nil)
	s.Require().NoError(err)
	_, err = s.transports.SetETA(s.ctx, tr, 1, nil)
	s.Require().NoError(err)
	for _, d := range s.getTransport(tr).Destinations {
		s.Nil(d.ETA)
	}

	_, err = s.transports.SetETA(s.ctx, tr, 9, &eta)
	s.requireErr(err, errors.KindNotFound, errors.CodeDestinationMissing)
}

func (s *LifecycleSuite) TestHoldAndReactivateRoundTrip() {
	r := s.trailer("R", false)
	tr := s.transport(func(t *domain.Transport) { t.TrailerID = ptr(r) }, day1)
	sl := s.slot(day1, nil, nil, tr)
	s.load()

	_, err := s.lifecycle.Hold(s.ctx, tr, Acknowledgements{})
	s.Require().NoError(err)

	got := s.getTransport(tr)
	s.Equal(domain.StatusOnHold, got.Lifecycle.Status())
	s.Nil(got.TrailerID, "hold releases the trailer")
	s.True(s.getSlot(sl).IsEmpty())
	s.Empty(s.board.UnassignedPool(day1))

	_, err = s.assign.Assign(s.ctx, tr, ptr(sl), day1, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportOnHold)

	_, err = s.lifecycle.Hold(s.ctx, tr, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeIllegalTransition)

	_, err = s.lifecycle.Reactivate(s.ctx, tr, domain.DatePlan{
		Destinations: []domain.DestinationDate{{Order: 1, Date: day2}},
	})
	s.Require().NoError(err)

	got = s.getTransport(tr)
	s.Equal(domain.StatusActive, got.Lifecycle.Status())
	s.Equal(domain.CurrentPlanned, got.Lifecycle.CurrentStatus())
	s.Empty(s.board.UnassignedPool(day1))
	pool := s.board.UnassignedPool(day2)
	s.Require().Len(pool, 1)
	s.Equal(tr, pool[0].ID)
	s.Empty(s.board.SlotsOfTransport(tr), "prior slot bindings are gone")

	_, err = s.lifecycle.Reactivate(s.ctx, tr, domain.DatePlan{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportNotOnHold)
}

func (s *LifecycleSuite) TestHoldDispatchedNeedsAcknowledgment() {
	eta := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	tr := s.transport(func(t *domain.Transport) {
		t.Lifecycle = ongoing()
		t.Destinations[0].ETA = &eta
	}, day1)
	s.slot(day1, nil, nil, tr)
	s.load()

	_, err := s.lifecycle.Hold(s.ctx, tr, Acknowledgements{})
	s.requireErr(err, errors.KindConfirmationRequired, errors.CodeDetachRequired)

	_, err = s.lifecycle.Hold(s.ctx, tr, Acknowledgements{DetachDispatched: true})
	s.Require().NoError(err)
	got := s.getTransport(tr)
	s.Equal(domain.StatusOnHold, got.Lifecycle.Status())
	s.Nil(got.Destinations[0].ETA)
}

func (s *LifecycleSuite) TestDeleteReleasesEverything() {
	tr := s.transport(nil, day1, day2)
	s1 := s.slot(day1, nil, nil, tr)
	s2 := s.slot(day2, nil, nil, tr)
	s.load()

	res, err := s.lifecycle.Delete(s.ctx, tr, Acknowledgements{})
	s.Require().NoError(err)
	s.Len(res.Slots, 2)
	s.True(s.getSlot(s1).IsEmpty())
	s.True(s.getSlot(s2).IsEmpty())
	s.True(s.getTransport(tr).Lifecycle.IsDeleted())
	s.Empty(s.board.UnassignedPool(day1))

	last := res.Events[len(res.Events)-1]
	s.Equal(domain.EntityTransport, last.Entity)
	s.Equal(domain.UpdateDeleted, last.Type)

	_, err = s.lifecycle.Delete(s.ctx, tr, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportDeleted)
}

func (s *LifecycleSuite) TestDeletingCutTransportFreesTrailer() {
	r := s.trailer("R", false)
	cut := s.transport(func(t *domain.Transport) {
		container := "TGHU7654321"
		t.ContainerRef = &container
		t.TrailerID = ptr(r)
		t.Lifecycle = cutLifecycle(domain.CutBoth, day1)
	}, day1)
	other := s.transport(nil, day2)
	s.load()

	_, err := s.assign.BindTrailer(s.ctx, other, ptr(r), Acknowledgements{})
	s.requireErr(err, errors.KindConflict, errors.CodeTrailerBlockedByCut)

	_, err = s.lifecycle.Delete(s.ctx, cut, Acknowledgements{})
	s.Require().NoError(err)
	s.True(s.getTransport(cut).Lifecycle.IsCut(), "cut history is kept")

	_, err = s.assign.BindTrailer(s.ctx, other, ptr(r), Acknowledgements{})
	s.Require().NoError(err)
}

func (s *LifecycleSuite) TestNotesTravelOnlyWithNotesUpdates() {
	d := s.driver("Anna", true)
	tk := s.truck("Scania", true)
	tr := s.transport(func(t *domain.Transport) { t.Notes = "fragile" }, day1)
	s.slot(day1, ptr(d), ptr(tk), tr)
	s.load()

	res, err := s.transports.UpdateNotes(s.ctx, tr, "call ahead")
	s.Require().NoError(err)
	s.Require().Len(res.Events, 1)
	s.Equal(domain.UpdateNotes, res.Events[0].Type)
	var snap map[string]interface{}
	s.Require().NoError(json.Unmarshal(res.Events[0].Snapshot, &snap))
	s.Equal("call ahead", snap["notes"])

	res, err = s.lifecycle.SendToDriver(s.ctx, tr)
	s.Require().NoError(err)
	snap = nil
	s.Require().NoError(json.Unmarshal(res.Events[0].Snapshot, &snap))
	s.NotContains(snap, "notes")
	s.Contains(snap, "lifecycle")

	res, err = s.transports.UpdateNotes(s.ctx, tr, "call ahead")
	s.Require().NoError(err)
	s.Empty(res.Events)
}
