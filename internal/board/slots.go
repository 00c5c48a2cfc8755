package board

import (
	"sort"
	"time"

	"github.com/dispatch-board/internal/domain"
)

// SlotsOn returns copies of the slots of d ordered by slot number.
func (b *Board) SlotsOn(d domain.Date) []*domain.Slot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.dates[d]
	out := make([]*domain.Slot, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.slots[id].Clone())
	}
	return out
}

// SlotOfTransport returns the slot holding the transport on d.
func (b *Board) SlotOfTransport(transportID int64, d domain.Date) (*domain.Slot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.dates[d] {
		if s := b.slots[id]; s.Has(transportID) {
			return s.Clone(), true
		}
	}
	return nil, false
}

// SlotsOfTransport returns every loaded slot holding the transport, ordered
// by date.
func (b *Board) SlotsOfTransport(transportID int64) []*domain.Slot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*domain.Slot
	for _, s := range b.slots {
		if s.Has(transportID) {
			out = append(out, s.Clone())
		}
	}
	sortByDate(out)
	return out
}

// NextSlotNumber is the number a new slot on d gets.
func (b *Board) NextSlotNumber(d domain.Date) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.dates[d]) + 1
}

// UnassignedPool lists the schedulable transports planned on d that hold no
// slot on d.
func (b *Board) UnassignedPool(d domain.Date) []*domain.Transport {
	b.mu.RLock()
	defer b.mu.RUnlock()

	assigned := make(map[int64]bool)
	for _, id := range b.dates[d] {
		for _, a := range b.slots[id].Assignments {
			assigned[a.TransportID] = true
		}
	}
	var out []*domain.Transport
	for _, t := range b.transports {
		if !t.Lifecycle.Schedulable() || assigned[t.ID] || !t.HasPlanningDate(d) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortTransports(out)
	return out
}

// Day builds the read model of d. Sequence numbers are left to the caller.
func (b *Board) Day(d domain.Date) *domain.BoardDay {
	day := &domain.BoardDay{
		Date:      d,
		Slots:     b.SlotsOn(d),
		UpdatedAt: time.Now().UTC(),
	}
	seen := make(map[int64]bool)
	for _, s := range day.Slots {
		for _, a := range s.Assignments {
			if seen[a.TransportID] {
				continue
			}
			if t, ok := b.Transport(a.TransportID); ok {
				day.Transports = append(day.Transports, t)
				seen[t.ID] = true
			}
		}
	}
	for _, t := range b.UnassignedPool(d) {
		day.Unassigned = append(day.Unassigned, t.ID)
		if !seen[t.ID] {
			day.Transports = append(day.Transports, t)
			seen[t.ID] = true
		}
	}
	if day.Slots == nil {
		day.Slots = []*domain.Slot{}
	}
	if day.Unassigned == nil {
		day.Unassigned = []int64{}
	}
	return day
}

func sortByDate(slots []*domain.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].SlotNumber < slots[j].SlotNumber
	})
}

func sortTransports(ts []*domain.Transport) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
