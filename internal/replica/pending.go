package replica

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dispatch-board/internal/domain"
)

// Target is an entity a local mutation touches. Date is set only for slot
// lists, which are keyed by day.
type Target struct {
	Entity domain.EntityKind
	ID     int64
	Date   domain.Date
}

// TargetOf is the entity a change event is about.
func TargetOf(e domain.ChangeEvent) Target {
	t := Target{Entity: e.Entity, ID: e.EntityID}
	if e.Entity == domain.EntitySlotList {
		t.Date = e.StreamKey()
	}
	return t
}

// PendingMutation is a local guess waiting for the authority.
type PendingMutation struct {
	CorrelationID string
	Operation     string
	Targets       []Target
	// Dates are the days Guess is applied to.
	Dates []domain.Date
	// Guess edits a watched day optimistically. May be nil.
	Guess func(day *domain.BoardDay)

	CreatedAt time.Time
	SentAt    time.Time
}

// Sent reports whether the request has been issued.
func (m *PendingMutation) Sent() bool { return !m.SentAt.IsZero() }

func (m *PendingMutation) touches(t Target) bool {
	for _, own := range m.Targets {
		if own == t {
			return true
		}
	}
	return false
}

// PendingQueue holds local mutations by correlation id in submission order.
type PendingQueue struct {
	mu    sync.Mutex
	items []*PendingMutation
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

// Add queues m, assigning a correlation id when it has none.
func (q *PendingQueue) Add(m *PendingMutation, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if m.CorrelationID == "" {
		m.CorrelationID = uuid.NewString()
	}
	if q.indexLocked(m.CorrelationID) >= 0 {
		return fmt.Errorf("mutation %s is already pending", m.CorrelationID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	q.items = append(q.items, m)
	return nil
}

// MarkSent records that the request left; from now on it cannot be
// cancelled.
func (q *PendingQueue) MarkSent(id string, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return false
	}
	q.items[idx].SentAt = now
	return true
}

// Cancel drops a mutation that was never sent. Sent mutations run to
// completion and are not returned.
func (q *PendingQueue) Cancel(id string) (*PendingMutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 || q.items[idx].Sent() {
		return nil, false
	}
	return q.removeLocked(idx), true
}

// Resolve removes the mutation once the authority answered.
func (q *PendingQueue) Resolve(id string) (*PendingMutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	return q.removeLocked(idx), true
}

func (q *PendingQueue) Has(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(id) >= 0
}

func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Guards reports whether a mutation on t started less than window ago.
func (q *PendingQueue) Guards(t Target, now time.Time, window time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.items {
		if !m.touches(t) {
			continue
		}
		started := m.CreatedAt
		if m.Sent() {
			started = m.SentAt
		}
		if now.Sub(started) < window {
			return true
		}
	}
	return false
}

func (q *PendingQueue) indexLocked(id string) int {
	for i, m := range q.items {
		if m.CorrelationID == id {
			return i
		}
	}
	return -1
}

func (q *PendingQueue) removeLocked(idx int) *PendingMutation {
	m := q.items[idx]
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return m
}
