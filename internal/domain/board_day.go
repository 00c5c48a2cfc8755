package domain

import "time"

// BoardDay is the read model of one date: slots in number order, the
// transports they carry and the unassigned pool. Seq and GlobalSeq are the
// last date and date-less change sequences folded into it.
type BoardDay struct {
	Date       Date         `json:"date"`
	Seq        uint64       `json:"seq"`
	GlobalSeq  uint64       `json:"global_seq"`
	Slots      []*Slot      `json:"slots"`
	Transports []*Transport `json:"transports"`
	Unassigned []int64      `json:"unassigned"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Transport returns the transport with id from the day, if present.
func (d *BoardDay) Transport(id int64) *Transport {
	for _, t := range d.Transports {
		if t.ID == id {
			return t
		}
	}
	return nil
}
