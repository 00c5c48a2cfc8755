package board

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSet_SerializesSameKey(t *testing.T) {
	locks := NewLockSet()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), "date:2024-06-01", "trailer:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locks.size())
}

func TestLockSet_OppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := NewLockSet()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				unlock, _ := locks.Lock(context.Background(), "a", "b")
				unlock()
			}()
			go func() {
				defer wg.Done()
				unlock, _ := locks.Lock(context.Background(), "b", "a")
				unlock()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock acquisition deadlocked")
	}
}

func TestLockSet_IndependentKeysDoNotBlock(t *testing.T) {
	locks := NewLockSet()
	unlock, err := locks.Lock(context.Background(), DateKey(day))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := locks.Lock(ctx, DateKey(day.AddDays(1)))
	require.NoError(t, err)
	other()
}

func TestLockSet_CancelWhileWaiting(t *testing.T) {
	locks := NewLockSet()
	unlock, err := locks.Lock(context.Background(), "k1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "k0", "k1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, locks.size())

	again, err := locks.Lock(context.Background(), "k0", "k1")
	require.NoError(t, err)
	again()
}

func TestLockSet_LockDiscoveredRetriesOnGrowth(t *testing.T) {
	locks := NewLockSet()
	calls := 0
	retries := 0

	unlock, err := locks.LockDiscovered(context.Background(), func() ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"transport:1"}, nil
		}
		return []string{"transport:1", "date:2024-06-01"}, nil
	}, func() { retries++ })
	require.NoError(t, err)
	unlock()

	assert.Equal(t, 1, retries)
	assert.Equal(t, 3, calls)
}
