package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/repository/memory"
)

var day = domain.MustDate("2024-06-01")

type fixture struct {
	store *memory.Store
	board *Board
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	b := New(store, memory.NewTransportRepository(store), memory.NewSlotRepository(store),
		Options{PreloadPastDays: 1, PreloadFutureDays: 1}, zap.NewNop())
	return &fixture{store: store, board: b}
}

func (f *fixture) transport(t *testing.T, mutate func(*domain.Transport), dates ...string) *domain.Transport {
	t.Helper()
	tr := &domain.Transport{Reference: "T", Type: domain.TransportImport, Lifecycle: domain.NewLifecycle()}
	for i, d := range dates {
		tr.Destinations = append(tr.Destinations, domain.Destination{Order: i + 1, Date: domain.MustDate(d)})
	}
	if mutate != nil {
		mutate(tr)
	}
	require.NoError(t, memory.NewTransportRepository(f.store).Create(context.Background(), tr))
	return tr
}

func (f *fixture) slot(t *testing.T, date domain.Date, number int, driver, truck *int64, transports ...int64) *domain.Slot {
	t.Helper()
	s := &domain.Slot{Date: date, SlotNumber: number, DriverID: driver, TruckID: truck}
	require.NoError(t, memory.NewSlotRepository(f.store).Create(context.Background(), s))
	if len(transports) > 0 {
		for _, id := range transports {
			s.Append(id, time.Time{})
		}
		require.NoError(t, f.store.Apply(context.Background(), &domain.ChangeSet{Slots: []*domain.Slot{s}}))
	}
	return s
}

func id(v int64) *int64 { return &v }

func TestBoard_LoadAndLazyDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.slot(t, day, 1, nil, nil)
	far := domain.MustDate("2024-07-01")
	f.slot(t, far, 1, nil, nil)

	require.NoError(t, f.board.Load(ctx, day))
	assert.True(t, f.board.DateLoaded(day))
	assert.True(t, f.board.DateLoaded(day.AddDays(1)))
	assert.False(t, f.board.DateLoaded(far))
	assert.Len(t, f.board.SlotsOn(day), 1)

	require.NoError(t, f.board.EnsureDate(ctx, far))
	assert.Len(t, f.board.SlotsOn(far), 1)
}

func TestBoard_ApplyKeepsSlotsOrderedByNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.slot(t, day, 1, nil, nil)
	b := f.slot(t, day, 2, nil, nil)
	require.NoError(t, f.board.Load(ctx, day))

	a.SlotNumber, b.SlotNumber = 2, 1
	f.board.Apply(&domain.ChangeSet{Slots: []*domain.Slot{a, b}})

	slots := f.board.SlotsOn(day)
	require.Len(t, slots, 2)
	assert.Equal(t, b.ID, slots[0].ID)
	assert.Equal(t, a.ID, slots[1].ID)

	f.board.Apply(&domain.ChangeSet{DeletedSlots: []*domain.Slot{b}})
	assert.Len(t, f.board.SlotsOn(day), 1)
}

func TestBoard_ReadsAreCopies(t *testing.T) {
	f := newFixture(t)
	tr := f.transport(t, nil, "2024-06-01")
	require.NoError(t, f.board.Load(context.Background(), day))

	got, ok := f.board.Transport(tr.ID)
	require.True(t, ok)
	got.Notes = "local edit"

	again, _ := f.board.Transport(tr.ID)
	assert.Empty(t, again.Notes)
}

func TestBoard_UnassignedPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free := f.transport(t, nil, "2024-06-01")
	slotted := f.transport(t, nil, "2024-06-01")
	other := f.transport(t, nil, "2024-06-02")
	held := f.transport(t, func(tr *domain.Transport) { tr.Lifecycle, _ = tr.Lifecycle.Hold() }, "2024-06-01")
	window := f.transport(t, func(tr *domain.Transport) {
		tr.DepartureDate = id2date("2024-05-31")
		tr.ReturnDate = id2date("2024-06-02")
	}, "2024-06-02")
	f.slot(t, day, 1, nil, nil, slotted.ID)

	require.NoError(t, f.board.Load(ctx, day))

	var ids []int64
	for _, tr := range f.board.UnassignedPool(day) {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []int64{free.ID, window.ID}, ids)
	assert.NotContains(t, ids, other.ID)
	assert.NotContains(t, ids, held.ID)

	dayView := f.board.Day(day)
	assert.Len(t, dayView.Slots, 1)
	assert.ElementsMatch(t, []int64{free.ID, window.ID}, dayView.Unassigned)
	assert.NotNil(t, dayView.Transport(slotted.ID))
}

func id2date(s string) *domain.Date {
	d := domain.MustDate(s)
	return &d
}
