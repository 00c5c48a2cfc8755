package board

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dispatch-board/internal/domain"
)

// Lock keys. Every engine operation locks the keys of the dates, trailers
// and transports it reads for a decision and writes in its commit.
func DateKey(d domain.Date) string { return "date:" + d.String() }

func TrailerKey(id int64) string { return fmt.Sprintf("trailer:%d", id) }

func TransportKey(id int64) string { return fmt.Sprintf("transport:%d", id) }

func DriverKey(id int64) string { return fmt.Sprintf("driver:%d", id) }

func TruckKey(id int64) string { return fmt.Sprintf("truck:%d", id) }

type keyLock struct {
	ch   chan struct{}
	refs int
}

// LockSet is a set of keyed mutexes. Keys are always taken as one sorted
// batch so two operations can never wait on each other in a cycle.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*keyLock)}
}

// Lock acquires all keys or none. It gives up when ctx is done.
func (l *LockSet) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]*keyLock, 0, len(keys))

	for _, k := range keys {
		kl := l.ref(k)
		select {
		case kl.ch <- struct{}{}:
			held = append(held, kl)
		case <-ctx.Done():
			l.unref(k, kl)
			l.release(keys[:len(held)], held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(keys, held) })
	}, nil
}

// LockDiscovered locks the key set returned by discover and re-runs discover
// under the locks. If the set grew in between, it unlocks and tries again
// with the union. onRetry is called before every retry.
func (l *LockSet) LockDiscovered(ctx context.Context, discover func() ([]string, error), onRetry func()) (func(), error) {
	keys, err := discover()
	if err != nil {
		return nil, err
	}
	for {
		unlock, err := l.Lock(ctx, keys...)
		if err != nil {
			return nil, err
		}
		again, err := discover()
		if err != nil {
			unlock()
			return nil, err
		}
		if missing := subtract(again, keys); len(missing) == 0 {
			return unlock, nil
		}
		unlock()
		if onRetry != nil {
			onRetry()
		}
		keys = append(keys, again...)
	}
}

func (l *LockSet) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *LockSet) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *LockSet) release(keys []string, held []*keyLock) {
	for i := len(held) - 1; i >= 0; i-- {
		<-held[i].ch
		l.unref(keys[i], held[i])
	}
}

// size is the number of live keys; used by tests to check cleanup.
func (l *LockSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func subtract(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, k := range b {
		in[k] = struct{}{}
	}
	var out []string
	for _, k := range a {
		if _, ok := in[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
