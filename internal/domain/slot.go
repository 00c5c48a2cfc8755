package domain

import (
	"sort"
	"time"
)

// Direction for moving an assignment inside its slot.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) Valid() bool { return d == DirectionUp || d == DirectionDown }

// SlotAssignment binds one transport to one slot on one date.
type SlotAssignment struct {
	TransportID int64     `json:"transport_id" db:"transport_id"`
	SlotOrder   int       `json:"slot_order" db:"slot_order"`
	Date        Date      `json:"date" db:"date"`
	AssignedAt  time.Time `json:"assigned_at" db:"assigned_at"`
}

// Slot is a dispatch unit for one date. Assignments are kept sorted by
// SlotOrder and SlotOrder is always 0..n-1.
type Slot struct {
	ID              int64            `json:"id"`
	Date            Date             `json:"date"`
	SlotNumber      int              `json:"slot_number"`
	DriverID        *int64           `json:"driver_id"`
	TruckID         *int64           `json:"truck_id"`
	Assignments     []SlotAssignment `json:"assignments"`
	DriverStartNote string           `json:"driver_start_note"`
	Version         int64            `json:"version"`
}

// Clone returns a deep copy.
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.DriverID = cloneInt64(s.DriverID)
	cp.TruckID = cloneInt64(s.TruckID)
	if s.Assignments != nil {
		cp.Assignments = make([]SlotAssignment, len(s.Assignments))
		copy(cp.Assignments, s.Assignments)
	}
	return &cp
}

// IndexOf returns the position of the transport or -1.
func (s *Slot) IndexOf(transportID int64) int {
	for i, a := range s.Assignments {
		if a.TransportID == transportID {
			return i
		}
	}
	return -1
}

func (s *Slot) Has(transportID int64) bool { return s.IndexOf(transportID) >= 0 }

func (s *Slot) IsEmpty() bool { return len(s.Assignments) == 0 }

// TransportIDs in slot order.
func (s *Slot) TransportIDs() []int64 {
	ids := make([]int64, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		ids = append(ids, a.TransportID)
	}
	return ids
}

// Append puts the transport at the end: max order + 1.
func (s *Slot) Append(transportID int64, at time.Time) SlotAssignment {
	s.Normalize()
	a := SlotAssignment{
		TransportID: transportID,
		SlotOrder:   len(s.Assignments),
		Date:        s.Date,
		AssignedAt:  at,
	}
	s.Assignments = append(s.Assignments, a)
	return a
}

// Remove drops the transport and compacts the remaining orders.
func (s *Slot) Remove(transportID int64) bool {
	idx := s.IndexOf(transportID)
	if idx < 0 {
		return false
	}
	s.Assignments = append(s.Assignments[:idx], s.Assignments[idx+1:]...)
	s.Normalize()
	return true
}

// Move swaps the transport with its neighbour. Boundary moves are no-ops and
// report false.
func (s *Slot) Move(transportID int64, dir Direction) bool {
	s.Normalize()
	idx := s.IndexOf(transportID)
	if idx < 0 {
		return false
	}
	other := idx - 1
	if dir == DirectionDown {
		other = idx + 1
	}
	if other < 0 || other >= len(s.Assignments) {
		return false
	}
	s.Assignments[idx], s.Assignments[other] = s.Assignments[other], s.Assignments[idx]
	s.Assignments[idx].SlotOrder = idx
	s.Assignments[other].SlotOrder = other
	return true
}

// Normalize sorts by SlotOrder and renumbers 0..n-1.
func (s *Slot) Normalize() {
	sort.SliceStable(s.Assignments, func(i, j int) bool {
		return s.Assignments[i].SlotOrder < s.Assignments[j].SlotOrder
	})
	for i := range s.Assignments {
		s.Assignments[i].SlotOrder = i
		s.Assignments[i].Date = s.Date
	}
}

// SortSlots orders a date's slots by SlotNumber (ID breaks ties).
func SortSlots(slots []*Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].SlotNumber != slots[j].SlotNumber {
			return slots[i].SlotNumber < slots[j].SlotNumber
		}
		return slots[i].ID < slots[j].ID
	})
}

// RenumberSlots assigns SlotNumber 1..n following slice order and returns the
// slots whose number changed.
func RenumberSlots(slots []*Slot) []*Slot {
	var changed []*Slot
	for i, s := range slots {
		if s.SlotNumber != i+1 {
			s.SlotNumber = i + 1
			changed = append(changed, s)
		}
	}
	return changed
}

// MoveSlot returns a new slice with the slot at from moved to to.
func MoveSlot(slots []*Slot, from, to int) []*Slot {
	out := make([]*Slot, 0, len(slots))
	moved := slots[from]
	for i, s := range slots {
		if i != from {
			out = append(out, s)
		}
	}
	out = append(out[:to], append([]*Slot{moved}, out[to:]...)...)
	return out
}
