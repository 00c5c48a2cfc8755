package usecase

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

type AssignmentSuite struct{ engineSuite }

func TestAssignmentSuite(t *testing.T) {
	suite.Run(t, new(AssignmentSuite))
}

func (s *AssignmentSuite) TestADRWarningOverrideThenDriverBusy() {
	d := s.driver("Ivan", false)
	tr := s.transport(func(t *domain.Transport) { t.ADR = true }, day1)
	withDriver := s.slot(day1, ptr(d), nil)
	other := s.slot(day1, nil, nil)
	s.load()

	_, err := s.assign.Assign(s.ctx, tr, ptr(withDriver), day1, Acknowledgements{})
	s.requireErr(err, errors.KindCompatibilityWarning, errors.CodeDriverNotADR)
	s.True(s.getSlot(withDriver).IsEmpty())

	_, err = s.assign.Assign(s.ctx, tr, ptr(withDriver), day1, Acknowledgements{Compatibility: true})
	s.Require().NoError(err)
	s.Equal([]int64{tr}, s.getSlot(withDriver).TransportIDs())
	s.True(s.board.IsDriverBusy(d, day1, other))

	_, err = s.assign.BindDriver(s.ctx, other, ptr(d), Acknowledgements{})
	s.requireErr(err, errors.KindConflict, errors.CodeDriverBusy)

	// No acknowledgment turns a conflict into a warning.
	_, err = s.assign.BindDriver(s.ctx, other, ptr(d), Acknowledgements{Compatibility: true, DetachDispatched: true})
	s.requireErr(err, errors.KindConflict, errors.CodeDriverBusy)
	s.Nil(s.getSlot(other).DriverID)
}

func (s *AssignmentSuite) TestAssignMovesBetweenSlotsAtomically() {
	tr := s.transport(nil, day1)
	from := s.slot(day1, nil, nil, tr)
	to := s.slot(day1, nil, nil)
	s.load()

	res, err := s.assign.Assign(s.ctx, tr, ptr(to), day1, Acknowledgements{})
	s.Require().NoError(err)
	s.Len(res.Slots, 2)

	s.True(s.getSlot(from).IsEmpty())
	s.Equal([]int64{tr}, s.getSlot(to).TransportIDs())
	s.assertOneSlotPerDate(tr, day1)
	s.assertBoardMatchesStore(day1)

	res, err = s.assign.Assign(s.ctx, tr, ptr(to), day1, Acknowledgements{})
	s.Require().NoError(err)
	s.Empty(res.Slots, "assigning to the current slot is a no-op")
}

func (s *AssignmentSuite) TestAssignAppendsAtEnd() {
	a := s.transport(nil, day1)
	b := s.transport(nil, day1)
	c := s.transport(nil, day1)
	sl := s.slot(day1, nil, nil, a, b)
	s.load()

	_, err := s.assign.Assign(s.ctx, c, ptr(sl), day1, Acknowledgements{})
	s.Require().NoError(err)

	got := s.getSlot(sl)
	s.Equal([]int64{a, b, c}, got.TransportIDs())
	s.Equal(2, got.Assignments[2].SlotOrder)
	s.Equal(day1, got.Assignments[2].Date)
}

func (s *AssignmentSuite) TestUnassign() {
	a := s.transport(nil, day1)
	b := s.transport(nil, day1)
	sl := s.slot(day1, nil, nil, a, b)
	s.load()

	_, err := s.assign.Assign(s.ctx, a, nil, day1, Acknowledgements{})
	s.Require().NoError(err)
	got := s.getSlot(sl)
	s.Equal([]int64{b}, got.TransportIDs())
	s.Equal(0, got.Assignments[0].SlotOrder)

	pool := s.board.UnassignedPool(day1)
	s.Require().Len(pool, 1)
	s.Equal(a, pool[0].ID)

	_, err = s.assign.Assign(s.ctx, a, nil, day1, Acknowledgements{})
	s.requireErr(err, errors.KindNotFound, errors.CodeAssignmentNotFound)
}

func (s *AssignmentSuite) TestAssignRejectsWrongDates() {
	tr := s.transport(nil, day1)
	onDay2 := s.slot(day2, nil, nil)
	s.load()

	_, err := s.assign.Assign(s.ctx, tr, ptr(onDay2), day2, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeNotPlannedOnDate)

	_, err = s.assign.Assign(s.ctx, tr, ptr(onDay2), day1, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeSlotDateMismatch)

	_, err = s.assign.Assign(s.ctx, tr, ptr(999), day1, Acknowledgements{})
	s.requireErr(err, errors.KindNotFound, errors.CodeSlotNotFound)

	_, err = s.assign.Assign(s.ctx, 999, ptr(onDay2), day2, Acknowledgements{})
	s.requireErr(err, errors.KindNotFound, errors.CodeTransportNotFound)

	_, err = s.assign.Assign(s.ctx, tr, ptr(onDay2), domain.Date("06/02/2024"), Acknowledgements{})
	s.requireErr(err, errors.KindInvalidInput, errors.ErrInvalidDate.Code)
}

func (s *AssignmentSuite) TestAssignWindowDates() {
	tr := s.transport(func(t *domain.Transport) {
		dep, ret := day1, day3
		t.DepartureDate, t.ReturnDate = &dep, &ret
	}, day1, day3)
	mid := s.slot(day2, nil, nil)
	s.load()

	_, err := s.assign.Assign(s.ctx, tr, ptr(mid), day2, Acknowledgements{})
	s.Require().NoError(err, "every day of the window is a planning date")
}

func (s *AssignmentSuite) TestMovingDispatchedTransportNeedsDetach() {
	d := s.driver("Olga", true)
	tk := s.truck("MAN", true)
	eta := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	tr := s.transport(func(t *domain.Transport) {
		t.Lifecycle = ongoing()
		t.Destinations[0].ETA = &eta
	}, day1)
	from := s.slot(day1, ptr(d), ptr(tk), tr)
	to := s.slot(day1, nil, nil)
	s.load()

	_, err := s.assign.Assign(s.ctx, tr, ptr(to), day1, Acknowledgements{})
	s.requireErr(err, errors.KindConfirmationRequired, errors.CodeDetachRequired)
	s.Equal(domain.CurrentOngoing, s.getTransport(tr).Lifecycle.CurrentStatus())
	s.Equal([]int64{tr}, s.getSlot(from).TransportIDs())

	res, err := s.assign.Assign(s.ctx, tr, ptr(to), day1, Acknowledgements{DetachDispatched: true})
	s.Require().NoError(err)
	s.Len(res.Transports, 1)

	got := s.getTransport(tr)
	s.Equal(domain.CurrentPlanned, got.Lifecycle.CurrentStatus())
	s.False(got.Lifecycle.SentToDriver())
	s.Nil(got.Destinations[0].ETA)
	s.Equal([]int64{tr}, s.getSlot(to).TransportIDs())
	s.True(s.getSlot(from).IsEmpty())
}

func (s *AssignmentSuite) TestGensetWarning() {
	plain := s.truck("Volvo", false)
	reeferTrailer := s.trailer("Reefer chassis", true)
	bare := s.transport(func(t *domain.Transport) { t.ContainerSubtype = "40RF" }, day1)
	covered := s.transport(func(t *domain.Transport) {
		t.ContainerSubtype = "45RH"
		t.TrailerID = ptr(reeferTrailer)
	}, day1)
	sl := s.slot(day1, nil, ptr(plain))
	s.load()

	_, err := s.assign.Assign(s.ctx, bare, ptr(sl), day1, Acknowledgements{})
	s.requireErr(err, errors.KindCompatibilityWarning, errors.CodeGensetUnavailable)

	_, err = s.assign.Assign(s.ctx, covered, ptr(sl), day1, Acknowledgements{})
	s.Require().NoError(err, "the trailer supplies the genset")
}

func (s *AssignmentSuite) TestAssignWithStaleTruckReferenceIsNotFound() {
	tr := s.transport(nil, day1)
	sl := s.slot(day1, nil, ptr(777))
	s.load()

	_, err := s.assign.Assign(s.ctx, tr, ptr(sl), day1, Acknowledgements{})
	s.requireErr(err, errors.KindNotFound, errors.CodeTruckNotFound)
	s.True(s.getSlot(sl).IsEmpty())
}

func (s *AssignmentSuite) TestAssignRejectsSuspendedTransports() {
	held, err := domain.NewLifecycle().Hold()
	s.Require().NoError(err)
	onHold := s.transport(func(t *domain.Transport) { t.Lifecycle = held }, day1)
	cut := s.transport(func(t *domain.Transport) {
		t.Lifecycle = cutLifecycle(domain.CutContainer, day1)
	}, day1)
	sl := s.slot(day1, nil, nil)
	s.load()

	_, err = s.assign.Assign(s.ctx, onHold, ptr(sl), day1, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportOnHold)
	_, err = s.assign.Assign(s.ctx, cut, ptr(sl), day1, Acknowledgements{})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportCut)
}

func (s *AssignmentSuite) TestMoveUpTwice() {
	t0 := s.transport(nil, day1)
	t1 := s.transport(nil, day1)
	t2 := s.transport(nil, day1)
	sl := s.slot(day1, nil, nil, t0, t1, t2)
	s.load()

	_, err := s.assign.Move(s.ctx, t2, day1, domain.DirectionUp)
	s.Require().NoError(err)
	s.Equal([]int64{t0, t2, t1}, s.getSlot(sl).TransportIDs())

	_, err = s.assign.Move(s.ctx, t2, day1, domain.DirectionUp)
	s.Require().NoError(err)
	got := s.getSlot(sl)
	s.Equal([]int64{t2, t0, t1}, got.TransportIDs())
	for i, a := range got.Assignments {
		s.Equal(i, a.SlotOrder)
	}

	res, err := s.assign.Move(s.ctx, t2, day1, domain.DirectionUp)
	s.Require().NoError(err)
	s.Empty(res.Events, "first-up is a no-op")

	res, err = s.assign.Move(s.ctx, t1, day1, domain.DirectionDown)
	s.Require().NoError(err)
	s.Empty(res.Events, "last-down is a no-op")

	_, err = s.assign.Move(s.ctx, t1, day1, domain.Direction("left"))
	s.requireErr(err, errors.KindInvalidInput, errors.CodeInvalidDirection)
}

func (s *AssignmentSuite) TestReorderSlotsKeepsContents() {
	tr := s.transport(nil, day1)
	d := s.driver("Petr", false)
	a := s.slot(day1, ptr(d), nil, tr)
	b := s.slot(day1, nil, nil)
	c := s.slot(day1, nil, nil)
	s.load()

	res, err := s.assign.ReorderSlots(s.ctx, day1, 0, 2)
	s.Require().NoError(err)
	s.Len(res.Slots, 3)
	s.Require().Len(res.Events, 1)
	s.Equal(domain.EntitySlotList, res.Events[0].Entity)
	s.Equal(domain.UpdateSlotsReorder, res.Events[0].Type)

	var items []map[string]interface{}
	s.Require().NoError(json.Unmarshal(res.Events[0].Snapshot, &items))
	s.Require().Len(items, 3)
	s.EqualValues(b, items[0]["id"])
	s.EqualValues(a, items[2]["id"])
	s.NotContains(items[2], "assignments", "reorder pushes leave assignments out")

	slots := s.board.SlotsOn(day1)
	s.Equal([]int64{b, c, a}, []int64{slots[0].ID, slots[1].ID, slots[2].ID})
	s.Equal([]int64{tr}, slots[2].TransportIDs())
	s.Equal(d, *slots[2].DriverID)
	s.assertContiguous(day1)
	s.assertBoardMatchesStore(day1)

	_, err = s.assign.ReorderSlots(s.ctx, day1, 0, 3)
	s.requireErr(err, errors.KindInvalidInput, errors.CodeIndexOutOfRange)
	_, err = s.assign.ReorderSlots(s.ctx, day1, -1, 0)
	s.requireErr(err, errors.KindInvalidInput, errors.CodeIndexOutOfRange)
}

func (s *AssignmentSuite) TestBindDriverDetachesDispatched() {
	d1 := s.driver("A", true)
	d2 := s.driver("B", true)
	tk := s.truck("T", true)
	tr := s.transport(func(t *domain.Transport) { t.Lifecycle = completed() }, day1)
	sl := s.slot(day1, ptr(d1), ptr(tk), tr)
	s.load()

	_, err := s.assign.BindDriver(s.ctx, sl, ptr(d2), Acknowledgements{})
	s.requireErr(err, errors.KindConfirmationRequired, errors.CodeDetachRequired)
	s.Equal(d1, *s.getSlot(sl).DriverID)

	res, err := s.assign.BindDriver(s.ctx, sl, ptr(d2), Acknowledgements{DetachDispatched: true})
	s.Require().NoError(err)
	s.Len(res.Transports, 1)
	s.Equal(d2, *s.getSlot(sl).DriverID)
	s.Equal(domain.CurrentPlanned, s.getTransport(tr).Lifecycle.CurrentStatus())

	_, err = s.assign.BindDriver(s.ctx, sl, nil, Acknowledgements{})
	s.Require().NoError(err, "nothing dispatched any more")
	s.Nil(s.getSlot(sl).DriverID)

	_, err = s.assign.BindDriver(s.ctx, sl, ptr(404), Acknowledgements{})
	s.requireErr(err, errors.KindNotFound, errors.CodeDriverNotFound)
}

func (s *AssignmentSuite) TestBindDriverADRWarning() {
	plain := s.driver("No ADR", false)
	tr := s.transport(func(t *domain.Transport) { t.ADR = true }, day1)
	sl := s.slot(day1, nil, nil, tr)
	s.load()

	_, err := s.assign.BindDriver(s.ctx, sl, ptr(plain), Acknowledgements{})
	s.requireErr(err, errors.KindCompatibilityWarning, errors.CodeDriverNotADR)
	s.Nil(s.getSlot(sl).DriverID)

	_, err = s.assign.BindDriver(s.ctx, sl, ptr(plain), Acknowledgements{Compatibility: true})
	s.Require().NoError(err)
	s.Equal(plain, *s.getSlot(sl).DriverID)
}

func (s *AssignmentSuite) TestBindTruck() {
	plain := s.truck("Plain", false)
	tr := s.transport(func(t *domain.Transport) { t.ContainerSubtype = "22R1" }, day1)
	sl := s.slot(day1, nil, nil, tr)
	other := s.slot(day1, nil, nil)
	s.load()

	_, err := s.assign.BindTruck(s.ctx, sl, ptr(plain), Acknowledgements{})
	s.requireErr(err, errors.KindCompatibilityWarning, errors.CodeGensetUnavailable)

	_, err = s.assign.BindTruck(s.ctx, sl, ptr(plain), Acknowledgements{Compatibility: true})
	s.Require().NoError(err)
	s.Equal(plain, *s.getSlot(sl).TruckID)

	_, err = s.assign.BindTruck(s.ctx, other, ptr(plain), Acknowledgements{})
	s.requireErr(err, errors.KindConflict, errors.CodeTruckBusy)
}

func (s *AssignmentSuite) TestTrailerBlockedByUnrestoredCut() {
	r := s.trailer("R", false)
	s.transport(func(t *domain.Transport) {
		container := "MSCU1234567"
		t.ContainerRef = &container
		t.TrailerID = ptr(r)
		t.Lifecycle = cutLifecycle(domain.CutBoth, day1)
	}, day1)
	sameDay := s.transport(nil, day1)
	farAway := s.transport(nil, day4)
	s.load()

	for _, b := range []int64{sameDay, farAway} {
		_, err := s.assign.BindTrailer(s.ctx, b, ptr(r), Acknowledgements{})
		s.requireErr(err, errors.KindConflict, errors.CodeTrailerBlockedByCut)
		s.Contains(err.Error(), "until the cut")
		s.Nil(s.getTransport(b).TrailerID)
	}
}

func (s *AssignmentSuite) TestTrailerInUseOnOverlappingDates() {
	r := s.trailer("R", false)
	s.transport(func(t *domain.Transport) {
		t.TrailerID = ptr(r)
		t.Lifecycle = ongoing()
	}, day1, day2)
	overlapping := s.transport(nil, day2)
	disjoint := s.transport(nil, day3)
	s.load()

	_, err := s.assign.BindTrailer(s.ctx, overlapping, ptr(r), Acknowledgements{})
	s.requireErr(err, errors.KindConflict, errors.CodeTrailerInUse)
	appErr, ok := errors.As(err)
	s.Require().True(ok)
	s.Equal([]string{"2024-06-02"}, appErr.Details["dates"])

	_, err = s.assign.BindTrailer(s.ctx, disjoint, ptr(r), Acknowledgements{})
	s.Require().NoError(err)
	s.Equal(r, *s.getTransport(disjoint).TrailerID)

	_, err = s.assign.BindTrailer(s.ctx, disjoint, ptr(404), Acknowledgements{})
	s.requireErr(err, errors.KindNotFound, errors.CodeTrailerNotFound)
}

func (s *AssignmentSuite) TestBindTrailerStateRules() {
	r := s.trailer("R", false)
	held, err := domain.NewLifecycle().Hold()
	s.Require().NoError(err)
	onHold := s.transport(func(t *domain.Transport) { t.Lifecycle = held }, day1)
	running := s.transport(func(t *domain.Transport) { t.Lifecycle = ongoing() }, day1)
	s.load()

	_, err = s.assign.BindTrailer(s.ctx, onHold, ptr(r), Acknowledgements{OngoingChange: true})
	s.requireErr(err, errors.KindInvalidState, errors.CodeTransportOnHold)

	_, err = s.assign.BindTrailer(s.ctx, running, ptr(r), Acknowledgements{})
	s.requireErr(err, errors.KindConfirmationRequired, errors.CodeOngoingDispatch)

	res, err := s.assign.BindTrailer(s.ctx, running, ptr(r), Acknowledgements{OngoingChange: true})
	s.Require().NoError(err)
	s.Require().Len(res.Events, 1)
	s.Equal(domain.UpdateTrailer, res.Events[0].Type)
	s.Nil(res.Events[0].Date, "transport events use the global stream")
	s.Contains(res.Events[0].Dates, day1)
}

func (s *AssignmentSuite) TestBindTrailerGensetWarningUsesSlotTruck() {
	plain := s.truck("Plain", false)
	coldTrailer := s.trailer("Cold", true)
	warmTrailer := s.trailer("Warm", false)
	tr := s.transport(func(t *domain.Transport) { t.ContainerSubtype = "40RF" }, day1)
	s.slot(day1, nil, ptr(plain), tr)
	s.load()

	_, err := s.assign.BindTrailer(s.ctx, tr, ptr(warmTrailer), Acknowledgements{})
	s.requireErr(err, errors.KindCompatibilityWarning, errors.CodeGensetUnavailable)

	_, err = s.assign.BindTrailer(s.ctx, tr, ptr(coldTrailer), Acknowledgements{})
	s.Require().NoError(err)
}

func (s *AssignmentSuite) TestBindTrailerUnslottedDefersGensetToAssign() {
	plain := s.truck("Plain", false)
	warmTrailer := s.trailer("Warm", false)
	tr := s.transport(func(t *domain.Transport) { t.ContainerSubtype = "40RF" }, day1)
	sl := s.slot(day1, nil, ptr(plain))
	s.load()

	_, err := s.assign.BindTrailer(s.ctx, tr, ptr(warmTrailer), Acknowledgements{})
	s.Require().NoError(err, "no slot, no truck to check")

	_, err = s.assign.Assign(s.ctx, tr, ptr(sl), day1, Acknowledgements{})
	s.requireErr(err, errors.KindCompatibilityWarning, errors.CodeGensetUnavailable)
}

// Random concurrent bind/unbind sequences never put one driver or truck in
// two slots of the same date.
func (s *AssignmentSuite) TestResourceExclusivityUnderConcurrency() {
	var drivers, trucks []int64
	for i := 0; i < 3; i++ {
		drivers = append(drivers, s.driver("d", true))
		trucks = append(trucks, s.truck("t", true))
	}
	var slots []int64
	for _, d := range []domain.Date{day1, day2} {
		for i := 0; i < 3; i++ {
			slots = append(slots, s.slot(d, nil, nil))
		}
	}
	s.load()

	const workers, ops = 8, 40
	unexpected := make(chan error, workers*ops)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < ops; i++ {
				slotID := slots[rnd.Intn(len(slots))]
				var resource *int64
				if rnd.Intn(4) > 0 {
					if rnd.Intn(2) == 0 {
						resource = ptr(drivers[rnd.Intn(len(drivers))])
					} else {
						resource = ptr(trucks[rnd.Intn(len(trucks))])
					}
				}
				var err error
				if rnd.Intn(2) == 0 {
					if resource != nil && !contains(drivers, *resource) {
						resource = ptr(drivers[0])
					}
					_, err = s.assign.BindDriver(s.ctx, slotID, resource, Acknowledgements{})
				} else {
					if resource != nil && !contains(trucks, *resource) {
						resource = ptr(trucks[0])
					}
					_, err = s.assign.BindTruck(s.ctx, slotID, resource, Acknowledgements{})
				}
				if err != nil && errors.KindOf(err) != errors.KindConflict {
					unexpected <- err
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()
	close(unexpected)
	for err := range unexpected {
		s.Fail("unexpected error", err.Error())
	}

	for _, d := range []domain.Date{day1, day2} {
		seenDrivers := map[int64]int64{}
		seenTrucks := map[int64]int64{}
		for _, sl := range s.board.SlotsOn(d) {
			if sl.DriverID != nil {
				prev, dup := seenDrivers[*sl.DriverID]
				s.False(dup, "driver %d in slots %d and %d on %s", *sl.DriverID, prev, sl.ID, d)
				seenDrivers[*sl.DriverID] = sl.ID
			}
			if sl.TruckID != nil {
				prev, dup := seenTrucks[*sl.TruckID]
				s.False(dup, "truck %d in slots %d and %d on %s", *sl.TruckID, prev, sl.ID, d)
				seenTrucks[*sl.TruckID] = sl.ID
			}
		}
		s.assertBoardMatchesStore(d)
	}
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
