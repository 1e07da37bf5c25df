package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		r := l.Check("ep-1", 3)
		assert.True(t, r.Allowed, "request %d should be allowed", i)
	}

	r := l.Check("ep-1", 3)
	assert.False(t, r.Allowed, "4th request within the window should be denied")
}

func TestLimiter_RemainingIsMonotonicWithinWindow(t *testing.T) {
	l := New()

	r1 := l.Check("ep-2", 5)
	r2 := l.Check("ep-2", 5)
	assert.Equal(t, 4, r1.Remaining)
	assert.Equal(t, 3, r2.Remaining)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New()

	for i := 0; i < 2; i++ {
		assert.True(t, l.Check("ep-a", 2).Allowed)
	}
	assert.False(t, l.Check("ep-a", 2).Allowed)
	// A different key has its own window.
	assert.True(t, l.Check("ep-b", 2).Allowed)
}

func TestLimiter_WindowExpiryAdmitsAgain(t *testing.T) {
	l := New()
	l.windowSize = 20 * time.Millisecond

	assert.True(t, l.Check("ep-3", 1).Allowed)
	assert.False(t, l.Check("ep-3", 1).Allowed)

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Check("ep-3", 1).Allowed)
}

// TestLimiter_ConcurrentCallsNeverExceedLimit exercises invariant 6 from
// spec §8: of N concurrent Check calls completing within the same window,
// at most limit report allowed=true.
func TestLimiter_ConcurrentCallsNeverExceedLimit(t *testing.T) {
	l := New()
	const limit = 10
	const callers = 50

	var allowedCount atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if l.Check("ep-concurrent", limit).Allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowedCount.Load(), int64(limit))
}

func TestDropOlderThan_BoundaryIsExpired(t *testing.T) {
	base := time.Now()
	timestamps := []time.Time{base}

	// "at the instant now == entry_ts + windowMs, the entry is expired"
	cutoff := base
	got := dropOlderThan(timestamps, cutoff)
	assert.Empty(t, got)
}

func TestLimiter_SweepRemovesStaleKeys(t *testing.T) {
	l := New()
	l.Check("stale-key", 5)

	// Force the timestamp to look old and force a sweep regardless of the
	// real 5-minute interval, by manipulating internal state directly —
	// this test lives in-package specifically to reach into that state.
	l.windows["stale-key"].timestamps[0] = time.Now().Add(-2 * time.Minute)
	l.lastSweep = time.Now().Add(-6 * time.Minute)

	l.Check("another-key", 5)

	_, exists := l.windows["stale-key"]
	assert.False(t, exists)
}
