package board

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
)

// Options bound the initial load.
type Options struct {
	PreloadPastDays   int
	PreloadFutureDays int
}

// Board is the in-process cache of the dispatch state. Only the engine writes
// to it, and only with change sets that were already committed to storage.
// Every read returns copies.
//
// Slot data is tracked per date. A date is either fully loaded or absent;
// EnsureDate must be called with the date lock held.
type Board struct {
	mu sync.RWMutex

	drivers    map[int64]*domain.Driver
	trucks     map[int64]*domain.Truck
	trailers   map[int64]*domain.Trailer
	transports map[int64]*domain.Transport
	slots      map[int64]*domain.Slot
	dates      map[domain.Date][]int64
	loaded     map[domain.Date]bool

	resourceRepo  repository.ResourceRepository
	transportRepo repository.TransportRepository
	slotRepo      repository.SlotRepository
	opts          Options
	logger        *zap.Logger
}

func New(
	resourceRepo repository.ResourceRepository,
	transportRepo repository.TransportRepository,
	slotRepo repository.SlotRepository,
	opts Options,
	logger *zap.Logger,
) *Board {
	return &Board{
		drivers:       make(map[int64]*domain.Driver),
		trucks:        make(map[int64]*domain.Truck),
		trailers:      make(map[int64]*domain.Trailer),
		transports:    make(map[int64]*domain.Transport),
		slots:         make(map[int64]*domain.Slot),
		dates:         make(map[domain.Date][]int64),
		loaded:        make(map[domain.Date]bool),
		resourceRepo:  resourceRepo,
		transportRepo: transportRepo,
		slotRepo:      slotRepo,
		opts:          opts,
		logger:        logger,
	}
}

// Load reads resources, open transports and the slots of the preload window
// around today.
func (b *Board) Load(ctx context.Context, today domain.Date) error {
	drivers, err := b.resourceRepo.ListDrivers(ctx)
	if err != nil {
		return fmt.Errorf("load drivers: %w", err)
	}
	trucks, err := b.resourceRepo.ListTrucks(ctx)
	if err != nil {
		return fmt.Errorf("load trucks: %w", err)
	}
	trailers, err := b.resourceRepo.ListTrailers(ctx)
	if err != nil {
		return fmt.Errorf("load trailers: %w", err)
	}
	transports, err := b.transportRepo.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("load transports: %w", err)
	}
	from := today.AddDays(-b.opts.PreloadPastDays)
	to := today.AddDays(b.opts.PreloadFutureDays)
	slots, err := b.slotRepo.ListRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, d := range drivers {
		b.drivers[d.ID] = d
	}
	for _, t := range trucks {
		b.trucks[t.ID] = t
	}
	for _, t := range trailers {
		b.trailers[t.ID] = t
	}
	for _, t := range transports {
		b.transports[t.ID] = t.Clone()
	}
	for _, d := range domain.DateRange(from, to) {
		b.dates[d] = nil
		b.loaded[d] = true
	}
	for _, s := range slots {
		b.putSlotLocked(s.Clone())
	}

	b.logger.Info("Board loaded",
		zap.Int("drivers", len(drivers)),
		zap.Int("trucks", len(trucks)),
		zap.Int("trailers", len(trailers)),
		zap.Int("transports", len(transports)),
		zap.Int("slots", len(slots)),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	return nil
}

// DateLoaded reports whether the slots of d are on the board.
func (b *Board) DateLoaded(d domain.Date) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded[d]
}

// EnsureDate loads the slots of d from storage unless they are already
// present. The caller must hold DateKey(d).
func (b *Board) EnsureDate(ctx context.Context, d domain.Date) error {
	if b.DateLoaded(d) {
		return nil
	}
	slots, err := b.slotRepo.ListByDate(ctx, d)
	if err != nil {
		return fmt.Errorf("load slots for %s: %w", d, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded[d] {
		return nil
	}
	b.dates[d] = nil
	b.loaded[d] = true
	for _, s := range slots {
		b.putSlotLocked(s.Clone())
	}
	b.logger.Debug("Board date loaded",
		zap.String("date", d.String()),
		zap.Int("slots", len(slots)))
	return nil
}

// EnsureDates is EnsureDate for several dates.
func (b *Board) EnsureDates(ctx context.Context, dates []domain.Date) error {
	for _, d := range dates {
		if err := b.EnsureDate(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// EnsureTransport makes sure a transport that was not part of the initial
// load (deleted before start, created elsewhere) is on the board. The caller
// must hold TransportKey(id).
func (b *Board) EnsureTransport(ctx context.Context, id int64) (*domain.Transport, error) {
	if t, ok := b.Transport(id); ok {
		return t, nil
	}
	t, err := b.transportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.transports[id]; ok {
		return existing.Clone(), nil
	}
	b.transports[id] = t.Clone()
	return t, nil
}

// Apply installs a committed change set.
func (b *Board) Apply(cs *domain.ChangeSet) {
	if cs.IsEmpty() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range cs.Transports {
		b.transports[t.ID] = t.Clone()
	}
	for _, s := range cs.DeletedSlots {
		b.removeSlotLocked(s.ID)
	}
	touched := make(map[domain.Date]bool)
	for _, s := range cs.Slots {
		b.putSlotLocked(s.Clone())
		touched[s.Date] = true
	}
	for d := range touched {
		b.sortDateLocked(d)
	}
}

func (b *Board) putSlotLocked(s *domain.Slot) {
	s.Normalize()
	if _, exists := b.slots[s.ID]; !exists {
		b.dates[s.Date] = append(b.dates[s.Date], s.ID)
	}
	b.slots[s.ID] = s
	b.sortDateLocked(s.Date)
}

func (b *Board) removeSlotLocked(id int64) {
	s, ok := b.slots[id]
	if !ok {
		return
	}
	delete(b.slots, id)
	ids := b.dates[s.Date]
	for i, sid := range ids {
		if sid == id {
			b.dates[s.Date] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func (b *Board) sortDateLocked(d domain.Date) {
	ids := b.dates[d]
	sort.SliceStable(ids, func(i, j int) bool {
		si, sj := b.slots[ids[i]], b.slots[ids[j]]
		if si.SlotNumber != sj.SlotNumber {
			return si.SlotNumber < sj.SlotNumber
		}
		return si.ID < sj.ID
	})
}

// Transport returns a copy of the transport.
func (b *Board) Transport(id int64) (*domain.Transport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.transports[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Transports returns copies of every transport on the board, deleted ones
// included, ordered by id.
func (b *Board) Transports() []*domain.Transport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.Transport, 0, len(b.transports))
	for _, t := range b.transports {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Slot returns a copy of the slot.
func (b *Board) Slot(id int64) (*domain.Slot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.slots[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Resource registry writes. Callers persist first.

func (b *Board) PutDriver(d *domain.Driver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *d
	b.drivers[d.ID] = &cp
}

func (b *Board) RemoveDriver(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drivers, id)
}

func (b *Board) PutTruck(t *domain.Truck) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *t
	b.trucks[t.ID] = &cp
}

func (b *Board) RemoveTruck(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.trucks, id)
}

func (b *Board) PutTrailer(t *domain.Trailer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *t
	b.trailers[t.ID] = &cp
}

func (b *Board) RemoveTrailer(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.trailers, id)
}
