package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalFor(t *testing.T) {
	assert.Equal(t, 600*time.Millisecond, IntervalFor(100))
	assert.Equal(t, time.Second, IntervalFor(60))
	assert.Zero(t, IntervalFor(0))
}

func TestLimiter_FirstCallImmediate(t *testing.T) {
	l := New(time.Second)

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_SharedAcrossConcurrentCallers(t *testing.T) {
	const (
		callers  = 5
		interval = 40 * time.Millisecond
	)
	l := New(interval)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times []time.Time
	)
	ready := make(chan struct{})
	start := time.Now()

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	close(ready)
	wg.Wait()

	require.Len(t, times, callers)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// The last permitted call cannot happen before (N-1) intervals have passed.
	last := times[callers-1].Sub(start)
	assert.GreaterOrEqual(t, last, time.Duration(callers-1)*interval-5*time.Millisecond)
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
