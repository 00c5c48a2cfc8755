package replica

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
)

// PushResult says what became of one pushed event, per watched day.
type PushResult struct {
	Applied  []domain.Date
	Deferred []domain.Date
	// Reload lists days whose sequence skipped or whose merge failed. They
	// must be fetched from the authority again.
	Reload []domain.Date
}

// confirmKey identifies an entity on one sequence stream.
type confirmKey struct {
	stream domain.Date
	target Target
}

type deferredPush struct {
	event domain.ChangeEvent
	days  map[domain.Date]bool
}

// Reconciler merges confirmed state into the View. Confirmed snapshots
// always win; keys they leave out keep the local value. Pushes about an
// entity with a local mutation in flight are held back for the guard window
// and replayed once it ends.
type Reconciler struct {
	mu        sync.Mutex
	view      *View
	pending   *PendingQueue
	guard     time.Duration
	deferred  map[Target][]*deferredPush
	// старший подтверждённый seq по сущности
	confirmed map[confirmKey]uint64
	now       func() time.Time
	logger    *zap.Logger
}

func NewReconciler(view *View, pending *PendingQueue, guard time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		view:      view,
		pending:   pending,
		guard:     guard,
		deferred:  make(map[Target][]*deferredPush),
		confirmed: make(map[confirmKey]uint64),
		now:       time.Now,
		logger:    logger,
	}
}

// View returns the reconciled view.
func (r *Reconciler) View() *View { return r.view }

// Load installs an authoritative copy of a day. Held-back pushes for that
// day are superseded by it.
func (r *Reconciler) Load(day *domain.BoardDay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.load(day)
	for t, list := range r.deferred {
		for _, p := range list {
			delete(p.days, day.Date)
		}
		r.compactLocked(t)
	}
	for k, seq := range r.confirmed {
		if k.stream == day.Date && seq <= day.Seq {
			delete(r.confirmed, k)
		}
	}
}

// Optimistic queues m and applies its guess to the watched days.
func (r *Reconciler) Optimistic(m *PendingMutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.pending.Add(m, r.now()); err != nil {
		return err
	}
	if m.Guess == nil {
		return nil
	}
	for _, d := range m.Dates {
		r.view.update(d, func(day *domain.BoardDay) {
			m.Guess(day)
			refreshPool(day)
		})
	}
	return nil
}

// MarkSent records that the mutation's request was issued.
func (r *Reconciler) MarkSent(correlationID string) bool {
	return r.pending.MarkSent(correlationID, r.now())
}

// Cancel abandons a mutation that was never sent. It returns the watched
// days carrying its guess; they must be reloaded.
func (r *Reconciler) Cancel(correlationID string) ([]domain.Date, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.pending.Cancel(correlationID)
	if !ok {
		return nil, false
	}
	r.flushLocked()
	return r.watchedLocked(m.Dates), true
}

// Reject drops a mutation the authority refused and returns the days to
// reload.
func (r *Reconciler) Reject(correlationID string) []domain.Date {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.pending.Resolve(correlationID)
	if !ok {
		return nil
	}
	r.flushLocked()
	return r.watchedLocked(m.Dates)
}

// ApplyConfirmed merges the authority's answer to our own mutation. The
// events are applied regardless of the guard; a date sequence only moves
// forward when the event is the next one, so pushes still in flight are not
// mistaken for stale. Pushes about the same entity older than a confirmed
// event are not merged afterwards.
func (r *Reconciler) ApplyConfirmed(correlationID string, events []domain.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.Resolve(correlationID)

	var firstErr error
	for _, e := range events {
		r.dropSupersededLocked(e)
		k := confirmKey{stream: e.StreamKey(), target: TargetOf(e)}
		if e.Seq > r.confirmed[k] {
			r.confirmed[k] = e.Seq
		}
		for _, d := range r.concernedLocked(e) {
			r.view.update(d, func(day *domain.BoardDay) {
				if err := applyEvent(day, e); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				if e.Date != nil && e.Seq == day.Seq+1 {
					day.Seq = e.Seq
				}
			})
		}
	}
	r.flushLocked()
	return firstErr
}

// ApplyPush folds a change pushed by the authority.
func (r *Reconciler) ApplyPush(e domain.ChangeEvent) PushResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()

	var res PushResult
	target := TargetOf(e)
	// an echo of our own mutation is its confirmation
	own := e.CorrelationID != "" && r.pending.Has(e.CorrelationID)
	guarded := !own && r.pending.Guards(target, r.now(), r.guard)
	superseded := e.Seq <= r.confirmed[confirmKey{stream: e.StreamKey(), target: target}]
	held := &deferredPush{event: e, days: make(map[domain.Date]bool)}

	for _, d := range r.concernedLocked(e) {
		r.view.update(d, func(day *domain.BoardDay) {
			if e.Date != nil {
				if e.Seq <= day.Seq {
					return
				}
				if e.Seq > day.Seq+1 {
					res.Reload = append(res.Reload, d)
					return
				}
				day.Seq = e.Seq
			} else {
				if e.Seq <= day.GlobalSeq {
					return
				}
				day.GlobalSeq = e.Seq
			}
			if superseded {
				return
			}
			if guarded {
				held.days[d] = true
				res.Deferred = append(res.Deferred, d)
				return
			}
			if err := applyEvent(day, e); err != nil {
				r.logger.Warn("Failed to merge pushed change",
					zap.String("date", d.String()),
					zap.String("entity", string(e.Entity)),
					zap.Int64("entity_id", e.EntityID),
					zap.Error(err))
				res.Reload = append(res.Reload, d)
				return
			}
			res.Applied = append(res.Applied, d)
		})
	}

	if len(held.days) > 0 {
		r.deferred[target] = append(r.deferred[target], held)
		r.logger.Debug("Push held back by local mutation",
			zap.String("entity", string(e.Entity)),
			zap.Int64("entity_id", e.EntityID),
			zap.Uint64("seq", e.Seq))
	}
	return res
}

// Flush replays held-back pushes whose guard has ended.
func (r *Reconciler) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

// Deferred is the number of held-back pushes.
func (r *Reconciler) Deferred() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.deferred {
		n += len(list)
	}
	return n
}

func (r *Reconciler) flushLocked() {
	now := r.now()
	for t, list := range r.deferred {
		if r.pending.Guards(t, now, r.guard) {
			continue
		}
		for _, p := range list {
			if p.event.Seq <= r.confirmed[confirmKey{stream: p.event.StreamKey(), target: t}] {
				continue
			}
			for d := range p.days {
				r.view.update(d, func(day *domain.BoardDay) {
					if err := applyEvent(day, p.event); err != nil {
						r.logger.Warn("Failed to replay held-back change",
							zap.String("date", d.String()),
							zap.Error(err))
					}
				})
			}
		}
		delete(r.deferred, t)
	}
}

// dropSupersededLocked forgets held-back pushes about the same entity that
// are older than a confirmed event on the same stream.
func (r *Reconciler) dropSupersededLocked(e domain.ChangeEvent) {
	t := TargetOf(e)
	list := r.deferred[t]
	if len(list) == 0 {
		return
	}
	kept := list[:0]
	for _, p := range list {
		if p.event.StreamKey() == e.StreamKey() && p.event.Seq < e.Seq {
			continue
		}
		kept = append(kept, p)
	}
	r.deferred[t] = kept
	r.compactLocked(t)
}

func (r *Reconciler) compactLocked(t Target) {
	list := r.deferred[t]
	kept := list[:0]
	for _, p := range list {
		if len(p.days) > 0 {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(r.deferred, t)
		return
	}
	r.deferred[t] = kept
}

func (r *Reconciler) concernedLocked(e domain.ChangeEvent) []domain.Date {
	var out []domain.Date
	for _, d := range r.view.Dates() {
		if e.Concerns(map[domain.Date]bool{d: true}) {
			out = append(out, d)
		}
	}
	return out
}

func (r *Reconciler) watchedLocked(dates []domain.Date) []domain.Date {
	var out []domain.Date
	for _, d := range domain.UniqueDates(dates) {
		if r.view.Watches(d) {
			out = append(out, d)
		}
	}
	return out
}
