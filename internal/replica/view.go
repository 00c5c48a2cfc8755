package replica

import (
	"sort"
	"sync"

	"github.com/dispatch-board/internal/domain"
)

// View is a local copy of the board days a client watches. Only the
// Reconciler writes to it; readers get deep copies.
type View struct {
	mu   sync.RWMutex
	days map[domain.Date]*domain.BoardDay
}

func NewView() *View {
	return &View{days: make(map[domain.Date]*domain.BoardDay)}
}

// Day returns a copy of the watched day.
func (v *View) Day(d domain.Date) (*domain.BoardDay, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	day, ok := v.days[d]
	if !ok {
		return nil, false
	}
	return cloneDay(day), true
}

// Dates lists the watched days in order.
func (v *View) Dates() []domain.Date {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.Date, 0, len(v.days))
	for d := range v.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (v *View) Watches(d domain.Date) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.days[d]
	return ok
}

// Drop stops watching d.
func (v *View) Drop(d domain.Date) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.days, d)
}

func (v *View) load(day *domain.BoardDay) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.days[day.Date] = cloneDay(day)
}

// update runs fn on the live day; false if d is not watched.
func (v *View) update(d domain.Date, fn func(day *domain.BoardDay)) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	day, ok := v.days[d]
	if !ok {
		return false
	}
	fn(day)
	return true
}

func cloneDay(day *domain.BoardDay) *domain.BoardDay {
	cp := *day
	cp.Slots = make([]*domain.Slot, len(day.Slots))
	for i, s := range day.Slots {
		cp.Slots[i] = s.Clone()
	}
	cp.Transports = make([]*domain.Transport, len(day.Transports))
	for i, t := range day.Transports {
		cp.Transports[i] = t.Clone()
	}
	cp.Unassigned = append([]int64{}, day.Unassigned...)
	return &cp
}
