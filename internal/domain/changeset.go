package domain

// ChangeSet is everything one engine operation writes. It is persisted
// atomically and then applied to the board in one step.
type ChangeSet struct {
	Transports   []*Transport `json:"transports"`
	Slots        []*Slot      `json:"slots"`
	DeletedSlots []*Slot      `json:"deleted_slots"`
}

func (c *ChangeSet) IsEmpty() bool {
	return c == nil || (len(c.Transports) == 0 && len(c.Slots) == 0 && len(c.DeletedSlots) == 0)
}

// PutTransport adds t or replaces an earlier entry with the same id.
func (c *ChangeSet) PutTransport(t *Transport) {
	for i, existing := range c.Transports {
		if existing.ID == t.ID {
			c.Transports[i] = t
			return
		}
	}
	c.Transports = append(c.Transports, t)
}

// PutSlot adds s or replaces an earlier entry with the same id.
func (c *ChangeSet) PutSlot(s *Slot) {
	for i, existing := range c.Slots {
		if existing.ID == s.ID {
			c.Slots[i] = s
			return
		}
	}
	c.Slots = append(c.Slots, s)
}

// DeleteSlot schedules s for removal and drops any pending update of it.
func (c *ChangeSet) DeleteSlot(s *Slot) {
	for i, existing := range c.Slots {
		if existing.ID == s.ID {
			c.Slots = append(c.Slots[:i], c.Slots[i+1:]...)
			break
		}
	}
	c.DeletedSlots = append(c.DeletedSlots, s)
}

// Transport returns the staged copy of a transport, if any.
func (c *ChangeSet) Transport(id int64) *Transport {
	for _, t := range c.Transports {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Slot returns the staged copy of a slot, if any.
func (c *ChangeSet) Slot(id int64) *Slot {
	for _, s := range c.Slots {
		if s.ID == id {
			return s
		}
	}
	return nil
}
