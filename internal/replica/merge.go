package replica

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dispatch-board/internal/domain"
)

// mergeTransport decodes a confirmed snapshot onto a copy of the local
// record. Keys missing from the snapshot keep their local value; explicit
// nulls clear.
func mergeTransport(local *domain.Transport, snap json.RawMessage) (*domain.Transport, error) {
	merged := &domain.Transport{}
	if local != nil {
		merged = local.Clone()
	}
	if err := json.Unmarshal(snap, merged); err != nil {
		return nil, fmt.Errorf("merge transport snapshot: %w", err)
	}
	return merged, nil
}

func mergeSlot(local *domain.Slot, snap json.RawMessage) (*domain.Slot, error) {
	merged := &domain.Slot{}
	if local != nil {
		merged = local.Clone()
	}
	if err := json.Unmarshal(snap, merged); err != nil {
		return nil, fmt.Errorf("merge slot snapshot: %w", err)
	}
	if merged.Assignments == nil {
		merged.Assignments = []domain.SlotAssignment{}
	}
	merged.Normalize()
	return merged, nil
}

// applyEvent folds one change into the day.
func applyEvent(day *domain.BoardDay, e domain.ChangeEvent) error {
	switch e.Entity {
	case domain.EntitySlot:
		if e.Type == domain.UpdateDeleted {
			removeSlot(day, e.EntityID)
			break
		}
		idx := slotIndex(day, e.EntityID)
		var local *domain.Slot
		if idx >= 0 {
			local = day.Slots[idx]
		}
		merged, err := mergeSlot(local, e.Snapshot)
		if err != nil {
			return err
		}
		switch {
		case merged.Date != day.Date:
			removeSlot(day, e.EntityID)
		case idx >= 0:
			day.Slots[idx] = merged
		default:
			day.Slots = append(day.Slots, merged)
		}
		domain.SortSlots(day.Slots)

	case domain.EntitySlotList:
		next, err := reorderedSlots(day, e.Snapshot)
		if err != nil {
			return err
		}
		day.Slots = next

	case domain.EntityTransport:
		local := day.Transport(e.EntityID)
		merged, err := mergeTransport(local, e.Snapshot)
		if err != nil {
			return err
		}
		replaced := false
		for i, t := range day.Transports {
			if t.ID == merged.ID {
				day.Transports[i] = merged
				replaced = true
				break
			}
		}
		if !replaced {
			day.Transports = append(day.Transports, merged)
		}

	default:
		// resources are not part of a board day
		return nil
	}
	refreshPool(day)
	return nil
}

// reorderedSlots replaces the ordering wholesale. A push without assignments
// keeps the local ones: absent is not empty.
func reorderedSlots(day *domain.BoardDay, snap json.RawMessage) ([]*domain.Slot, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(snap, &items); err != nil {
		return nil, fmt.Errorf("decode slot list: %w", err)
	}
	next := make([]*domain.Slot, 0, len(items))
	for _, item := range items {
		var head struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, fmt.Errorf("decode slot list item: %w", err)
		}
		var local *domain.Slot
		if idx := slotIndex(day, head.ID); idx >= 0 {
			local = day.Slots[idx]
		}
		merged, err := mergeSlot(local, item)
		if err != nil {
			return nil, err
		}
		if merged.Date == day.Date {
			next = append(next, merged)
		}
	}
	domain.SortSlots(next)
	return next, nil
}

// refreshPool recomputes the unassigned pool and drops transports that are
// neither slotted nor pooled on the day.
func refreshPool(day *domain.BoardDay) {
	assigned := make(map[int64]bool)
	for _, s := range day.Slots {
		for _, a := range s.Assignments {
			assigned[a.TransportID] = true
		}
	}
	pool := []int64{}
	kept := day.Transports[:0]
	for _, t := range day.Transports {
		pooled := !assigned[t.ID] && t.Lifecycle.Schedulable() && t.HasPlanningDate(day.Date)
		if pooled {
			pool = append(pool, t.ID)
		}
		if pooled || assigned[t.ID] {
			kept = append(kept, t)
		}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })
	day.Transports = kept
	day.Unassigned = pool
}

func slotIndex(day *domain.BoardDay, id int64) int {
	for i, s := range day.Slots {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func removeSlot(day *domain.BoardDay, id int64) {
	if idx := slotIndex(day, id); idx >= 0 {
		day.Slots = append(day.Slots[:idx], day.Slots[idx+1:]...)
	}
}
