package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/errors"
	"github.com/dispatch-board/internal/pkg/metrics"
)

// Acknowledgements are the explicit overrides a caller sends when re-issuing
// a request that was answered with ConfirmationRequired or
// CompatibilityWarning. Nothing is ever acknowledged implicitly.
type Acknowledgements struct {
	// DetachDispatched allows forcibly detaching transports from their
	// driver/truck (status back to PLANNED, ETAs cleared).
	DetachDispatched bool `json:"detach_dispatched"`
	// Compatibility overrides ADR and genset warnings.
	Compatibility bool `json:"compatibility"`
	// OngoingChange allows changing the trailer of an ONGOING transport.
	OngoingChange bool `json:"ongoing_change"`
}

// Result is what one mutation committed.
type Result struct {
	Transports   []*domain.Transport  `json:"transports"`
	Slots        []*domain.Slot       `json:"slots"`
	DeletedSlots []int64              `json:"deleted_slots"`
	Events       []domain.ChangeEvent `json:"-"`
}

// Engine is the single writer of the board. Every mutation runs through
// mutate: lock, validate against the board, persist atomically, apply to the
// board, publish.
type Engine struct {
	board         *board.Board
	locks         *board.LockSet
	feed          *board.Feed
	uow           repository.UnitOfWork
	transportRepo repository.TransportRepository
	slotRepo      repository.SlotRepository
	resourceRepo  repository.ResourceRepository
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

func NewEngine(
	b *board.Board,
	locks *board.LockSet,
	feed *board.Feed,
	uow repository.UnitOfWork,
	transportRepo repository.TransportRepository,
	slotRepo repository.SlotRepository,
	resourceRepo repository.ResourceRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		board:         b,
		locks:         locks,
		feed:          feed,
		uow:           uow,
		transportRepo: transportRepo,
		slotRepo:      slotRepo,
		resourceRepo:  resourceRepo,
		metrics:       m,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Board exposes the read side for query usecases.
func (e *Engine) Board() *board.Board { return e.board }

// Feed exposes the change feed for subscribers.
func (e *Engine) Feed() *board.Feed { return e.feed }

type keyFunc func() ([]string, error)

type mutateFunc func(ctx context.Context, x *tx) error

// mutate runs fn under the locks returned by keys. Once the locks are held
// the operation is detached from ctx cancellation and runs to completion.
func (e *Engine) mutate(ctx context.Context, op string, keys keyFunc, fn mutateFunc) (*Result, error) {
	start := time.Now()
	res, err := e.mutateLocked(ctx, keys, fn)

	outcome := "ok"
	if err != nil {
		outcome = string(errors.KindOf(err))
		if errors.KindOf(err) == errors.KindInternal {
			e.logger.Error("Mutation failed", zap.String("operation", op), zap.Error(err))
		} else {
			e.logger.Debug("Mutation rejected",
				zap.String("operation", op),
				zap.String("code", errors.CodeOf(err)))
		}
	}
	e.metrics.RecordMutation(op, outcome, time.Since(start))
	return res, err
}

func (e *Engine) mutateLocked(ctx context.Context, keys keyFunc, fn mutateFunc) (*Result, error) {
	waitStart := time.Now()
	unlock, err := e.locks.LockDiscovered(ctx, keys, e.metrics.CommitRetries.Inc)
	if err != nil {
		return nil, err
	}
	defer unlock()
	e.metrics.LockWait.Observe(time.Since(waitStart).Seconds())

	ctx = context.WithoutCancel(ctx)
	x := newTx(e)
	if err := fn(ctx, x); err != nil {
		return nil, err
	}
	if x.cs.IsEmpty() {
		return x.result(nil), nil
	}

	if !x.persisted {
		if err := e.uow.Apply(ctx, &x.cs); err != nil {
			if _, ok := errors.As(err); ok {
				return nil, err
			}
			return nil, errors.ErrDatabaseError.Wrap(err)
		}
	}
	e.board.Apply(&x.cs)

	events, err := x.events(domain.CorrelationIDFrom(ctx))
	if err != nil {
		// Committed but not broadcast; views catch up on their next reload.
		e.logger.Error("Failed to build change events", zap.Error(err))
		return x.result(nil), nil
	}
	return x.result(e.feed.Publish(events...)), nil
}

// view runs a read-only fn under the locks returned by keys. Nothing fn
// stages is committed.
func (e *Engine) view(ctx context.Context, keys keyFunc, fn mutateFunc) error {
	unlock, err := e.locks.LockDiscovered(ctx, keys, e.metrics.CommitRetries.Inc)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx, newTx(e))
}

// loadErr turns a storage failure during board loading into an AppError.
func loadErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.ErrDatabaseError.Wrap(err)
}

// ---- lock key discovery ----

// transportKeys locks the transport, its trailer and every date it holds a
// slot on. Slot dates come from storage so dates that are not on the board
// yet are included.
func (e *Engine) transportKeys(ctx context.Context, id int64, extra ...string) keyFunc {
	return func() ([]string, error) {
		keys := append([]string{board.TransportKey(id)}, extra...)
		if t, ok := e.board.Transport(id); ok && t.TrailerID != nil {
			keys = append(keys, board.TrailerKey(*t.TrailerID))
		}
		slots, err := e.slotRepo.ListByTransport(ctx, id)
		if err != nil {
			return nil, loadErr(err)
		}
		for _, s := range slots {
			keys = append(keys, board.DateKey(s.Date))
		}
		for _, s := range e.board.SlotsOfTransport(id) {
			keys = append(keys, board.DateKey(s.Date))
		}
		return keys, nil
	}
}

// slotKeys locks the slot's date plus every transport in it (and their
// trailers) so they can be detached.
func (e *Engine) slotKeys(ctx context.Context, slotID int64, extra ...string) keyFunc {
	return func() ([]string, error) {
		s, ok := e.board.Slot(slotID)
		if !ok {
			stored, err := e.slotRepo.GetByID(ctx, slotID)
			if err != nil {
				return nil, loadErr(err)
			}
			s = stored
		}
		keys := append([]string{board.DateKey(s.Date)}, extra...)
		for _, a := range s.Assignments {
			keys = append(keys, board.TransportKey(a.TransportID))
			if t, ok := e.board.Transport(a.TransportID); ok && t.TrailerID != nil {
				keys = append(keys, board.TrailerKey(*t.TrailerID))
			}
		}
		return keys, nil
	}
}

func staticKeys(keys ...string) keyFunc {
	return func() ([]string, error) { return keys, nil }
}

// ---- transaction ----

// tx stages one mutation. Reads see staged values first, then the board.
type tx struct {
	e   *Engine
	cs  domain.ChangeSet
	now time.Time

	deleted        map[int64]bool
	transportTypes map[int64]domain.UpdateType
	slotTypes      map[int64]domain.UpdateType
	reorders       []domain.Date
	origDates      map[int64][]domain.Date

	// persisted is set when fn already inserted the staged entity through
	// its repository; the change set then only goes to the board.
	persisted bool
}

func newTx(e *Engine) *tx {
	return &tx{
		e:              e,
		now:            e.now(),
		deleted:        make(map[int64]bool),
		transportTypes: make(map[int64]domain.UpdateType),
		slotTypes:      make(map[int64]domain.UpdateType),
		origDates:      make(map[int64][]domain.Date),
	}
}

// transport returns a mutable copy; stage it with putTransport.
func (x *tx) transport(ctx context.Context, id int64) (*domain.Transport, error) {
	if t := x.cs.Transport(id); t != nil {
		return t, nil
	}
	t, err := x.e.board.EnsureTransport(ctx, id)
	if err != nil {
		return nil, loadErr(err)
	}
	return t, nil
}

// slot returns a mutable copy; stage it with putSlot.
func (x *tx) slot(id int64) (*domain.Slot, error) {
	if x.deleted[id] {
		return nil, errors.NotFound(errors.CodeSlotNotFound, "slot %d not found", id)
	}
	if s := x.cs.Slot(id); s != nil {
		return s, nil
	}
	s, ok := x.e.board.Slot(id)
	if !ok {
		return nil, errors.NotFound(errors.CodeSlotNotFound, "slot %d not found", id)
	}
	return s, nil
}

// loadSlot is slot for a slot whose date may not be on the board yet. The
// caller must hold the slot's date key.
func (x *tx) loadSlot(ctx context.Context, id int64) (*domain.Slot, error) {
	if s, err := x.slot(id); err == nil {
		return s, nil
	}
	stored, err := x.e.slotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, loadErr(err)
	}
	if err := x.ensureDate(ctx, stored.Date); err != nil {
		return nil, err
	}
	return x.slot(id)
}

// slotsOn lists the slots of d in number order with staged changes applied.
func (x *tx) slotsOn(d domain.Date) []*domain.Slot {
	var out []*domain.Slot
	for _, s := range x.e.board.SlotsOn(d) {
		if x.deleted[s.ID] {
			continue
		}
		if staged := x.cs.Slot(s.ID); staged != nil {
			s = staged
		}
		out = append(out, s)
	}
	domain.SortSlots(out)
	return out
}

func (x *tx) slotOfTransport(transportID int64, d domain.Date) *domain.Slot {
	for _, s := range x.slotsOn(d) {
		if s.Has(transportID) {
			return s
		}
	}
	return nil
}

// slotsOfTransport lists every slot holding the transport. The caller must
// have loaded its dates.
func (x *tx) slotsOfTransport(transportID int64) []*domain.Slot {
	var out []*domain.Slot
	for _, s := range x.e.board.SlotsOfTransport(transportID) {
		if x.deleted[s.ID] {
			continue
		}
		if staged := x.cs.Slot(s.ID); staged != nil {
			s = staged
		}
		if s.Has(transportID) {
			out = append(out, s)
		}
	}
	return out
}

// ensureTransportDates loads every date the transport holds a slot on.
func (x *tx) ensureTransportDates(ctx context.Context, transportID int64) error {
	slots, err := x.e.slotRepo.ListByTransport(ctx, transportID)
	if err != nil {
		return loadErr(err)
	}
	for _, s := range slots {
		if err := x.e.board.EnsureDate(ctx, s.Date); err != nil {
			return loadErr(err)
		}
	}
	return nil
}

func (x *tx) ensureDate(ctx context.Context, d domain.Date) error {
	return loadErr(x.e.board.EnsureDate(ctx, d))
}

func (x *tx) putTransport(t *domain.Transport, typ domain.UpdateType) {
	if _, ok := x.origDates[t.ID]; !ok {
		if before, ok := x.e.board.Transport(t.ID); ok {
			x.origDates[t.ID] = append(before.PlanningDates(), before.TouchedDates()...)
		} else {
			x.origDates[t.ID] = nil
		}
	}
	x.cs.PutTransport(t)
	if typ != "" {
		x.transportTypes[t.ID] = typ
	}
}

// putSlot stages s; an empty typ stages it without an event of its own.
func (x *tx) putSlot(s *domain.Slot, typ domain.UpdateType) {
	s.Normalize()
	x.cs.PutSlot(s)
	if typ != "" {
		x.slotTypes[s.ID] = typ
	} else if _, ok := x.slotTypes[s.ID]; !ok {
		x.slotTypes[s.ID] = ""
	}
}

func (x *tx) deleteSlot(s *domain.Slot) {
	x.deleted[s.ID] = true
	delete(x.slotTypes, s.ID)
	x.cs.DeleteSlot(s)
}

// reorder emits one slots-reorder event for d carrying the full ordering.
func (x *tx) reorder(d domain.Date) {
	for _, r := range x.reorders {
		if r == d {
			return
		}
	}
	x.reorders = append(x.reorders, d)
}

// detach resets a dispatched transport and stages it.
func (x *tx) detach(t *domain.Transport) {
	t.DetachFromDriver()
	x.putTransport(t, domain.UpdateStatus)
}

// removeEverywhere drops the transport from every slot it holds.
func (x *tx) removeEverywhere(transportID int64) {
	for _, s := range x.slotsOfTransport(transportID) {
		s.Remove(transportID)
		x.putSlot(s, domain.UpdateAssignment)
	}
}

func (x *tx) result(events []domain.ChangeEvent) *Result {
	res := &Result{
		Transports:   make([]*domain.Transport, 0, len(x.cs.Transports)),
		Slots:        make([]*domain.Slot, 0, len(x.cs.Slots)),
		DeletedSlots: make([]int64, 0, len(x.cs.DeletedSlots)),
		Events:       events,
	}
	for _, t := range x.cs.Transports {
		res.Transports = append(res.Transports, t.Clone())
	}
	for _, s := range x.cs.Slots {
		res.Slots = append(res.Slots, s.Clone())
	}
	for _, s := range x.cs.DeletedSlots {
		res.DeletedSlots = append(res.DeletedSlots, s.ID)
	}
	return res
}

// events builds the change events of the committed set: deleted slots,
// slots, reorders, then transports.
func (x *tx) events(correlationID string) ([]domain.ChangeEvent, error) {
	var out []domain.ChangeEvent
	var stagedDates []domain.Date

	for _, s := range x.cs.DeletedSlots {
		snap, err := domain.Snapshot(map[string]interface{}{"id": s.ID, "date": s.Date})
		if err != nil {
			return nil, err
		}
		out = append(out, slotEvent(s, domain.UpdateDeleted, snap))
		stagedDates = append(stagedDates, s.Date)
	}
	for _, s := range x.cs.Slots {
		stagedDates = append(stagedDates, s.Date)
		typ := x.slotTypes[s.ID]
		if typ == "" {
			continue
		}
		snap, err := slotSnapshot(s, typ)
		if err != nil {
			return nil, err
		}
		out = append(out, slotEvent(s, typ, snap))
	}
	for _, d := range x.reorders {
		snap, err := slotListSnapshot(x.e.board.SlotsOn(d))
		if err != nil {
			return nil, err
		}
		date := d
		out = append(out, domain.ChangeEvent{
			Date:     &date,
			Dates:    []domain.Date{d},
			Entity:   domain.EntitySlotList,
			Type:     domain.UpdateSlotsReorder,
			Snapshot: snap,
		})
	}
	for _, t := range x.cs.Transports {
		typ := x.transportTypes[t.ID]
		if typ == "" {
			typ = domain.UpdatePlan
		}
		snap, err := transportSnapshot(t, typ)
		if err != nil {
			return nil, err
		}
		dates := append(append(append([]domain.Date{}, x.origDates[t.ID]...), t.PlanningDates()...), t.TouchedDates()...)
		dates = append(dates, stagedDates...)
		out = append(out, domain.ChangeEvent{
			Dates:    domain.UniqueDates(dates),
			Entity:   domain.EntityTransport,
			EntityID: t.ID,
			Type:     typ,
			Snapshot: snap,
		})
	}
	for i := range out {
		out[i].CorrelationID = correlationID
	}
	return out, nil
}

func slotEvent(s *domain.Slot, typ domain.UpdateType, snap json.RawMessage) domain.ChangeEvent {
	date := s.Date
	return domain.ChangeEvent{
		Date:     &date,
		Dates:    []domain.Date{s.Date},
		Entity:   domain.EntitySlot,
		EntityID: s.ID,
		Type:     typ,
		Snapshot: snap,
	}
}

// Locally edited free text travels only with its own update type.
func transportSnapshot(t *domain.Transport, typ domain.UpdateType) (json.RawMessage, error) {
	if typ == domain.UpdateNotes || typ == domain.UpdateCreated {
		return domain.Snapshot(t)
	}
	return domain.Snapshot(t, "notes")
}

func slotSnapshot(s *domain.Slot, typ domain.UpdateType) (json.RawMessage, error) {
	if typ == domain.UpdateNotes || typ == domain.UpdateCreated {
		return domain.Snapshot(s)
	}
	return domain.Snapshot(s, "driver_start_note")
}

// slotListSnapshot is the renumbered ordering of a date. Assignments are left
// out; receivers keep their own.
func slotListSnapshot(slots []*domain.Slot) (json.RawMessage, error) {
	items := make([]json.RawMessage, 0, len(slots))
	for _, s := range slots {
		snap, err := domain.Snapshot(s, "assignments", "driver_start_note")
		if err != nil {
			return nil, err
		}
		items = append(items, snap)
	}
	return json.Marshal(items)
}

func formatDates(dates []domain.Date) string {
	return strings.Join(dateStrings(dates), ", ")
}

func dateStrings(dates []domain.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range domain.UniqueDates(dates) {
		out = append(out, d.String())
	}
	return out
}

func sortedIDs(ids map[int64]bool) []int64 {
	out := make([]int64, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func parseDate(s string) (domain.Date, error) {
	d, err := domain.ParseDate(s)
	if err != nil {
		return "", errors.ErrInvalidDate.WithDetail("value", s)
	}
	return d, nil
}

func requireDate(d domain.Date) error {
	if !d.Valid() {
		return errors.ErrInvalidDate.WithDetail("value", d.String())
	}
	return nil
}
