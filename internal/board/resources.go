package board

import (
	"sort"

	"github.com/dispatch-board/internal/domain"
)

func (b *Board) Driver(id int64) (*domain.Driver, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.drivers[id]
	if !ok {
		return nil, false
	}
	cp := *d
	return &cp, true
}

func (b *Board) Truck(id int64) (*domain.Truck, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.trucks[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (b *Board) Trailer(id int64) (*domain.Trailer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.trailers[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (b *Board) Drivers() []*domain.Driver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.Driver, 0, len(b.drivers))
	for _, d := range b.drivers {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Board) Trucks() []*domain.Truck {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.Truck, 0, len(b.trucks))
	for _, t := range b.trucks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Board) Trailers() []*domain.Trailer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.Trailer, 0, len(b.trailers))
	for _, t := range b.trailers {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsDriverBusy reports whether another slot on date binds the driver.
func (b *Board) IsDriverBusy(driverID int64, date domain.Date, excludingSlotID int64) bool {
	_, busy := b.DriverSlot(driverID, date, excludingSlotID)
	return busy
}

// IsTruckBusy reports whether another slot on date binds the truck.
func (b *Board) IsTruckBusy(truckID int64, date domain.Date, excludingSlotID int64) bool {
	_, busy := b.TruckSlot(truckID, date, excludingSlotID)
	return busy
}

// DriverSlot returns the id of the other slot on date that binds the driver.
func (b *Board) DriverSlot(driverID int64, date domain.Date, excludingSlotID int64) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.dates[date] {
		s := b.slots[id]
		if s.ID != excludingSlotID && s.DriverID != nil && *s.DriverID == driverID {
			return s.ID, true
		}
	}
	return 0, false
}

// TruckSlot returns the id of the other slot on date that binds the truck.
func (b *Board) TruckSlot(truckID int64, date domain.Date, excludingSlotID int64) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.dates[date] {
		s := b.slots[id]
		if s.ID != excludingSlotID && s.TruckID != nil && *s.TruckID == truckID {
			return s.ID, true
		}
	}
	return 0, false
}

// IsTrailerBusy is true when another transport bound to the trailer is
// ONGOING and touches date, or holds the trailer through an unresolved cut of
// type TRAILER or BOTH (whatever the date).
func (b *Board) IsTrailerBusy(trailerID, excludingTransportID int64, date domain.Date) bool {
	c := b.TrailerConflicts(trailerID, excludingTransportID, []domain.Date{date})
	return c.Busy()
}

// TrailerConflict explains why a trailer cannot be used.
type TrailerConflict struct {
	// Dates on which an ongoing transport already uses the trailer.
	Dates []domain.Date
	// Transports using the trailer on those dates.
	Transports []int64
	// CutBy is the transport whose unresolved cut blocks the trailer.
	CutBy *int64
	// CutDates are the visit dates of the blocking transport.
	CutDates []domain.Date
}

func (c TrailerConflict) Busy() bool { return c.CutBy != nil || len(c.Dates) > 0 }

// TrailerConflicts evaluates trailer exclusivity over dates.
func (b *Board) TrailerConflicts(trailerID, excludingTransportID int64, dates []domain.Date) TrailerConflict {
	b.mu.RLock()
	defer b.mu.RUnlock()

	want := make(map[domain.Date]bool, len(dates))
	for _, d := range dates {
		want[d] = true
	}

	var c TrailerConflict
	var conflictDates []domain.Date
	users := make(map[int64]bool)
	for _, t := range b.transports {
		if t.ID == excludingTransportID || t.TrailerID == nil || *t.TrailerID != trailerID {
			continue
		}
		if t.Lifecycle.BlocksTrailer() {
			if c.CutBy == nil || t.ID < *c.CutBy {
				id := t.ID
				c.CutBy = &id
				c.CutDates = t.TouchedDates()
			}
			continue
		}
		if t.Lifecycle.State() != domain.StateActive || t.Lifecycle.CurrentStatus() != domain.CurrentOngoing {
			continue
		}
		for _, d := range t.TouchedDates() {
			if want[d] {
				conflictDates = append(conflictDates, d)
				users[t.ID] = true
			}
		}
	}
	c.Dates = domain.UniqueDates(conflictDates)
	for id := range users {
		c.Transports = append(c.Transports, id)
	}
	sort.Slice(c.Transports, func(i, j int) bool { return c.Transports[i] < c.Transports[j] })
	return c
}

// ReferencesDriver reports whether any slot on a loaded date binds the driver.
func (b *Board) ReferencesDriver(driverID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.slots {
		if s.DriverID != nil && *s.DriverID == driverID {
			return true
		}
	}
	return false
}

// ReferencesTruck reports whether any slot on a loaded date binds the truck.
func (b *Board) ReferencesTruck(truckID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.slots {
		if s.TruckID != nil && *s.TruckID == truckID {
			return true
		}
	}
	return false
}

// ReferencesTrailer reports whether any live transport is bound to the trailer.
func (b *Board) ReferencesTrailer(trailerID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.transports {
		if !t.Lifecycle.IsDeleted() && t.TrailerID != nil && *t.TrailerID == trailerID {
			return true
		}
	}
	return false
}
