// Package memory is an in-process implementation of the repository ports.
// It backs the engine when BOARD_STORAGE_DRIVER=memory and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

// Store holds every entity in maps. It implements ResourceRepository and
// UnitOfWork itself; transport and slot access goes through
// NewTransportRepository and NewSlotRepository.
type Store struct {
	mu sync.RWMutex

	nextID     int64
	drivers    map[int64]domain.Driver
	trucks     map[int64]domain.Truck
	trailers   map[int64]domain.Trailer
	transports map[int64]*domain.Transport
	slots      map[int64]*domain.Slot

	// FailApply makes the next Apply fail once; used to test commit failures.
	FailApply error
}

func NewStore() *Store {
	return &Store{
		drivers:    make(map[int64]domain.Driver),
		trucks:     make(map[int64]domain.Truck),
		trailers:   make(map[int64]domain.Trailer),
		transports: make(map[int64]*domain.Transport),
		slots:      make(map[int64]*domain.Slot),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ---- resources ----

func (s *Store) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetDriver(ctx context.Context, id int64) (*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", id)
	}
	return &d, nil
}

func (s *Store) CreateDriver(ctx context.Context, d *domain.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.id()
	d.CreatedAt = time.Now().UTC()
	s.drivers[d.ID] = *d
	return nil
}

func (s *Store) UpdateDriver(ctx context.Context, d *domain.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.drivers[d.ID]
	if !ok {
		return errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", d.ID)
	}
	d.CreatedAt = old.CreatedAt
	s.drivers[d.ID] = *d
	return nil
}

func (s *Store) DeleteDriver(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drivers[id]; !ok {
		return errors.NotFound(errors.CodeDriverNotFound, "driver %d not found", id)
	}
	delete(s.drivers, id)
	return nil
}

func (s *Store) ListTrucks(ctx context.Context) ([]*domain.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Truck, 0, len(s.trucks))
	for _, t := range s.trucks {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetTruck(ctx context.Context, id int64) (*domain.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trucks[id]
	if !ok {
		return nil, errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", id)
	}
	return &t, nil
}

func (s *Store) CreateTruck(ctx context.Context, t *domain.Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = time.Now().UTC()
	s.trucks[t.ID] = *t
	return nil
}

func (s *Store) UpdateTruck(ctx context.Context, t *domain.Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.trucks[t.ID]
	if !ok {
		return errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", t.ID)
	}
	t.CreatedAt = old.CreatedAt
	s.trucks[t.ID] = *t
	return nil
}

func (s *Store) DeleteTruck(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trucks[id]; !ok {
		return errors.NotFound(errors.CodeTruckNotFound, "truck %d not found", id)
	}
	delete(s.trucks, id)
	return nil
}

func (s *Store) ListTrailers(ctx context.Context) ([]*domain.Trailer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Trailer, 0, len(s.trailers))
	for _, t := range s.trailers {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetTrailer(ctx context.Context, id int64) (*domain.Trailer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trailers[id]
	if !ok {
		return nil, errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", id)
	}
	return &t, nil
}

func (s *Store) CreateTrailer(ctx context.Context, t *domain.Trailer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = time.Now().UTC()
	s.trailers[t.ID] = *t
	return nil
}

func (s *Store) UpdateTrailer(ctx context.Context, t *domain.Trailer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.trailers[t.ID]
	if !ok {
		return errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", t.ID)
	}
	t.CreatedAt = old.CreatedAt
	s.trailers[t.ID] = *t
	return nil
}

func (s *Store) DeleteTrailer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trailers[id]; !ok {
		return errors.NotFound(errors.CodeTrailerNotFound, "trailer %d not found", id)
	}
	delete(s.trailers, id)
	return nil
}

// ---- transports ----

func (s *Store) getTransport(ctx context.Context, id int64) (*domain.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transports[id]
	if !ok {
		return nil, errors.NotFound(errors.CodeTransportNotFound, "transport %d not found", id)
	}
	return t.Clone(), nil
}

func (s *Store) listOpenTransports(ctx context.Context) ([]*domain.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Transport
	for _, t := range s.transports {
		if !t.Lifecycle.IsDeleted() {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) listTransportsByDate(ctx context.Context, date domain.Date) ([]*domain.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Transport
	for _, t := range s.transports {
		for _, d := range t.Destinations {
			if d.Date == date {
				out = append(out, t.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) createTransport(ctx context.Context, t *domain.Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	t.ID = s.id()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	s.transports[t.ID] = t.Clone()
	return nil
}

// ---- slots ----

func (s *Store) getSlot(ctx context.Context, id int64) (*domain.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, errors.NotFound(errors.CodeSlotNotFound, "slot %d not found", id)
	}
	return sl.Clone(), nil
}

func (s *Store) listSlotsRange(ctx context.Context, from, to domain.Date) ([]*domain.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Slot
	for _, sl := range s.slots {
		if !sl.Date.Before(from) && !sl.Date.After(to) {
			out = append(out, sl.Clone())
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *Store) listSlotsByTransport(ctx context.Context, transportID int64) ([]*domain.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Slot
	for _, sl := range s.slots {
		if sl.Has(transportID) {
			out = append(out, sl.Clone())
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *Store) createSlot(ctx context.Context, sl *domain.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.ID = s.id()
	sl.Version = 1
	s.slots[sl.ID] = sl.Clone()
	return nil
}

func sortSlots(slots []*domain.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		if slots[i].SlotNumber != slots[j].SlotNumber {
			return slots[i].SlotNumber < slots[j].SlotNumber
		}
		return slots[i].ID < slots[j].ID
	})
}

// ---- unit of work ----

// Apply checks every version first and writes only when all match.
func (s *Store) Apply(ctx context.Context, cs *domain.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailApply != nil {
		err := s.FailApply
		s.FailApply = nil
		return err
	}

	for _, t := range cs.Transports {
		stored, ok := s.transports[t.ID]
		if !ok {
			return errors.NotFound(errors.CodeTransportNotFound, "transport %d not found", t.ID)
		}
		if stored.Version != t.Version {
			return errors.ErrConcurrentModification.WithDetail("transport_id", t.ID)
		}
	}
	for _, sl := range append(append([]*domain.Slot{}, cs.Slots...), cs.DeletedSlots...) {
		stored, ok := s.slots[sl.ID]
		if !ok {
			return errors.NotFound(errors.CodeSlotNotFound, "slot %d not found", sl.ID)
		}
		if stored.Version != sl.Version {
			return errors.ErrConcurrentModification.WithDetail("slot_id", sl.ID)
		}
	}

	now := time.Now().UTC()
	for _, t := range cs.Transports {
		t.Version++
		t.UpdatedAt = now
		s.transports[t.ID] = t.Clone()
	}
	for _, sl := range cs.Slots {
		sl.Version++
		s.slots[sl.ID] = sl.Clone()
	}
	for _, sl := range cs.DeletedSlots {
		delete(s.slots, sl.ID)
	}
	return nil
}
