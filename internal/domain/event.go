package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityKind names what a change event is about.
type EntityKind string

const (
	EntityTransport EntityKind = "transport"
	EntitySlot      EntityKind = "slot"
	EntitySlotList  EntityKind = "slot_list"
	EntityDriver    EntityKind = "driver"
	EntityTruck     EntityKind = "truck"
	EntityTrailer   EntityKind = "trailer"
)

// UpdateType is the coarse tag broadcast with every change.
type UpdateType string

const (
	UpdateCreated      UpdateType = "created"
	UpdateStatus       UpdateType = "status"
	UpdateETA          UpdateType = "eta"
	UpdateNotes        UpdateType = "notes"
	UpdatePlan         UpdateType = "plan"
	UpdateAssignment   UpdateType = "assignment"
	UpdateTrailer      UpdateType = "trailer"
	UpdateDriver       UpdateType = "driver"
	UpdateTruck        UpdateType = "truck"
	UpdateCut          UpdateType = "cut"
	UpdateRestore      UpdateType = "restore"
	UpdateDeleted      UpdateType = "deleted"
	UpdateSlotsReorder UpdateType = "slots-reorder"
	UpdateResource     UpdateType = "resource"
)

// ChangeEvent is one committed change. Seq is a total order per Date; events
// without a date share one global sequence. Dates lists every day the change
// is visible on and is used for subscriber filtering.
type ChangeEvent struct {
	ID            uuid.UUID       `json:"id"`
	Seq           uint64          `json:"seq"`
	Date          *Date           `json:"date,omitempty"`
	Dates         []Date          `json:"dates,omitempty"`
	Entity        EntityKind      `json:"entity"`
	EntityID      int64           `json:"entity_id"`
	Type          UpdateType      `json:"type"`
	Snapshot      json.RawMessage `json:"snapshot,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// StreamKey is the key of the sequence the event belongs to.
func (e ChangeEvent) StreamKey() Date {
	if e.Date == nil {
		return ""
	}
	return *e.Date
}

// Concerns reports whether the event is visible on any of the given dates.
// Events without dates concern everyone.
func (e ChangeEvent) Concerns(dates map[Date]bool) bool {
	if len(dates) == 0 || len(e.Dates) == 0 {
		return true
	}
	for _, d := range e.Dates {
		if dates[d] {
			return true
		}
	}
	return false
}

// Snapshot marshals v to a JSON object and drops the omitted top-level keys.
// Receivers keep their local value for any key that is absent.
func Snapshot(v interface{}, omit ...string) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(omit) == 0 {
		return data, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, k := range omit {
		delete(fields, k)
	}
	return json.Marshal(fields)
}

// CorrelationHeader carries the client mutation id over HTTP.
const CorrelationHeader = "X-Correlation-ID"

type correlationKey struct{}

// ContextWithCorrelationID tags ctx with the id of the client mutation.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the correlation id stored in ctx, or "".
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
