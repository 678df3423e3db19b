package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type failingStore struct{ err error }

func (s *failingStore) Acquire(context.Context, string, time.Duration) (bool, error) {
	return false, s.err
}

func TestSuppressionWindow(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	c := New(NewMemoryStore(WithClock(clk.Now)))
	ctx := context.Background()

	require.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalStrongBuy, domrepo.TF1h),
		"first emission passes")

	clk.Advance(29 * time.Minute)
	assert.False(t, c.ShouldEmit(ctx, "AAPL", models.SignalStrongBuy, domrepo.TF1h),
		"same key inside the window is suppressed")

	clk.Advance(2 * time.Minute) // 31 minutes after the stamp
	assert.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalStrongBuy, domrepo.TF1h),
		"window expired, emission passes again")
}

func TestSuppressionDoesNotRefreshOnHit(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	c := New(NewMemoryStore(WithClock(clk.Now)))
	ctx := context.Background()

	require.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalBuy, domrepo.TF1h))

	// Repeated suppressed hits must not slide the window forward.
	for i := 0; i < 5; i++ {
		clk.Advance(5 * time.Minute)
		assert.False(t, c.ShouldEmit(ctx, "AAPL", models.SignalBuy, domrepo.TF1h))
	}

	clk.Advance(6 * time.Minute) // 31 minutes after the original stamp
	assert.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalBuy, domrepo.TF1h))
}

func TestKeyGranularity(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	c := New(NewMemoryStore(WithClock(clk.Now)))
	ctx := context.Background()

	require.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalStrongBuy, domrepo.TF1h))

	assert.True(t, c.ShouldEmit(ctx, "MSFT", models.SignalStrongBuy, domrepo.TF1h),
		"different instrument is independent")
	assert.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalBuy, domrepo.TF1h),
		"different signal type is independent")
	assert.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalStrongBuy, domrepo.TF4h),
		"different timeframe is independent")
	assert.False(t, c.ShouldEmit(ctx, "AAPL", models.SignalStrongBuy, domrepo.TF1h),
		"the original key is still suppressed")
}

func TestCustomTTL(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	c := New(NewMemoryStore(WithClock(clk.Now)), WithTTL(5*time.Minute))
	ctx := context.Background()

	require.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalSell, domrepo.TF1h))
	clk.Advance(4 * time.Minute)
	assert.False(t, c.ShouldEmit(ctx, "AAPL", models.SignalSell, domrepo.TF1h))
	clk.Advance(2 * time.Minute)
	assert.True(t, c.ShouldEmit(ctx, "AAPL", models.SignalSell, domrepo.TF1h))
}

func TestFailOpenAndFailClosed(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{err: errors.New("backend down")}

	open := New(store)
	assert.True(t, open.ShouldEmit(ctx, "AAPL", models.SignalBuy, domrepo.TF1h),
		"fail-open is the default")

	closed := New(store, WithFailOpen(false))
	assert.False(t, closed.ShouldEmit(ctx, "AAPL", models.SignalBuy, domrepo.TF1h))
}

func TestMemoryStoreSweepBound(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	s := NewMemoryStore(WithClock(clk.Now), WithMaxEntries(8))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		ok, err := s.Acquire(ctx, fmt.Sprintf("key-%d", i), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 8, s.Len())

	// All stamps lapse; the next acquire hits the bound and sweeps them.
	clk.Advance(2 * time.Minute)
	ok, err := s.Acquire(ctx, "key-new", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.Len(), "expired stamps are reclaimed by the sweep")
}

func TestMemoryStoreConcurrentSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Acquire(ctx, "contested", time.Minute)
			if err == nil && ok {
				results <- true
			}
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for range results {
		wins++
	}
	assert.Equal(t, 1, wins, "exactly one goroutine may stamp a fresh key")
}
