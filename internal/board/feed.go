package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/metrics"
)

// Feed fans committed change events out to subscribers. Sequence numbers are
// assigned per date (date-less events share the "" stream) in publish order.
//
// A subscriber that cannot keep up has its channel closed; it must
// resubscribe and reload the dates it cares about.
type Feed struct {
	mu      sync.Mutex
	base    uint64
	seq     map[domain.Date]uint64
	subs    map[uint64]*Subscription
	nextID  uint64
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Subscription is one reader of the feed.
type Subscription struct {
	id     uint64
	ch     chan domain.ChangeEvent
	feed   *Feed
	closed bool
}

// NewFeed creates a feed whose sequences start after base. Passing a clock
// derived base keeps sequences increasing across restarts.
func NewFeed(base uint64, m *metrics.Metrics, logger *zap.Logger) *Feed {
	return &Feed{
		base:    base,
		seq:     make(map[domain.Date]uint64),
		subs:    make(map[uint64]*Subscription),
		metrics: m,
		logger:  logger,
	}
}

// Subscribe registers a reader with the given channel buffer.
func (f *Feed) Subscribe(buffer int) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s := &Subscription{id: f.nextID, ch: make(chan domain.ChangeEvent, buffer), feed: f}
	f.subs[s.id] = s
	return s
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan domain.ChangeEvent { return s.ch }

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.dropLocked(s)
}

func (f *Feed) dropLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	delete(f.subs, s.id)
	close(s.ch)
}

// Publish stamps the events with id, sequence and time and delivers them in
// order. It never blocks on a subscriber.
func (f *Feed) Publish(events ...domain.ChangeEvent) []domain.ChangeEvent {
	if len(events) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	out := make([]domain.ChangeEvent, len(events))
	for i, e := range events {
		key := e.StreamKey()
		if _, ok := f.seq[key]; !ok {
			f.seq[key] = f.base
		}
		f.seq[key]++
		e.Seq = f.seq[key]
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.OccurredAt.IsZero() {
			e.OccurredAt = now
		}
		out[i] = e
		if f.metrics != nil {
			f.metrics.EventsPublished.WithLabelValues(string(e.Entity), string(e.Type)).Inc()
		}
	}

	for _, s := range f.subs {
		for _, e := range out {
			select {
			case s.ch <- e:
				continue
			default:
			}
			f.logger.Warn("Feed subscriber fell behind, closing",
				zap.Uint64("subscriber", s.id),
				zap.Int("buffer", cap(s.ch)))
			if f.metrics != nil {
				f.metrics.SubscribersLost.Inc()
			}
			f.dropLocked(s)
			break
		}
	}
	return out
}

// SubscriberCount is the number of live subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// LastSeq is the latest sequence published on d's stream.
func (f *Feed) LastSeq(d domain.Date) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq, ok := f.seq[d]; ok {
		return seq
	}
	return f.base
}
