package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newStore(retention time.Duration, opts ...Option) (*VisitStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewVisitStore(retention, append([]Option{WithClock(clock.Now)}, opts...)...), clock
}

const origin = "https://links.example.com"

func TestVisitStore_SameStateTwice(t *testing.T) {
	s, _ := newStore(time.Hour)
	ctx := context.Background()

	first, err := s.TryRecordFirstVisit(ctx, "http://dest", origin, "abc")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.TryRecordFirstVisit(ctx, "http://dest", origin, "abc")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestVisitStore_DistinctStatesAndDestinations(t *testing.T) {
	s, _ := newStore(time.Hour)
	ctx := context.Background()

	tests := []struct {
		dest, origin, state string
		want                bool
	}{
		{"http://dest", origin, "a", true},
		{"http://dest", origin, "b", true},
		{"http://dest", origin, "a", false},
		{"http://other", origin, "a", true},
		{"http://dest", "http://localhost:8080", "a", true},
	}
	for i, tt := range tests {
		got, err := s.TryRecordFirstVisit(ctx, tt.dest, tt.origin, tt.state)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "call %d", i)
	}
	assert.Equal(t, 3, s.Len())
}

func TestVisitStore_ConcurrentFirstVisit(t *testing.T) {
	s, _ := newStore(time.Hour)
	const n = 64

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.TryRecordFirstVisit(context.Background(), "http://dest", origin, "same")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestVisitStore_ExpiryAnchoredToFirstVisitor(t *testing.T) {
	retention := 30 * 24 * time.Hour
	s, clock := newStore(retention)
	ctx := context.Background()

	ok, _ := s.TryRecordFirstVisit(ctx, "http://dest", origin, "first")
	require.True(t, ok)

	// a later visitor must not push the expiry out
	clock.Advance(retention - time.Hour)
	ok, _ = s.TryRecordFirstVisit(ctx, "http://dest", origin, "second")
	require.True(t, ok)

	clock.Advance(time.Hour + time.Millisecond)
	ok, _ = s.TryRecordFirstVisit(ctx, "http://dest", origin, "second")
	assert.True(t, ok, "whole record expires at first visit + retention")
	ok, _ = s.TryRecordFirstVisit(ctx, "http://dest", origin, "first")
	assert.True(t, ok)
}

func TestVisitStore_PurgeExpired(t *testing.T) {
	s, clock := newStore(time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = s.TryRecordFirstVisit(ctx, fmt.Sprintf("http://dest/%d", i), origin, "s")
	}
	clock.Advance(30 * time.Second)
	_, _ = s.TryRecordFirstVisit(ctx, "http://late", origin, "s")

	clock.Advance(31 * time.Second)
	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, 1, s.Len())
}

func TestVisitStore_MaxRecordsEvictsOldest(t *testing.T) {
	s, clock := newStore(time.Hour, WithMaxRecords(2))
	ctx := context.Background()

	_, _ = s.TryRecordFirstVisit(ctx, "http://one", origin, "s")
	clock.Advance(time.Second)
	_, _ = s.TryRecordFirstVisit(ctx, "http://two", origin, "s")
	clock.Advance(time.Second)
	_, _ = s.TryRecordFirstVisit(ctx, "http://three", origin, "s")
	assert.Equal(t, 2, s.Len())

	ok, _ := s.TryRecordFirstVisit(ctx, "http://two", origin, "s")
	assert.False(t, ok, "newer record kept")
	ok, _ = s.TryRecordFirstVisit(ctx, "http://three", origin, "s")
	assert.False(t, ok)
}

func TestVisitStore_FullStoreEvictsInExpiryOrder(t *testing.T) {
	const limit = 100
	s, clock := newStore(time.Hour, WithMaxRecords(limit))
	ctx := context.Background()

	for i := 0; i < 10*limit; i++ {
		ok, err := s.TryRecordFirstVisit(ctx, fmt.Sprintf("http://dest/%d", i), origin, "s")
		require.NoError(t, err)
		require.True(t, ok)
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, limit, s.Len())
	assert.Len(t, s.expiry, limit, "heap tracks exactly the live records")

	for i := 9 * limit; i < 10*limit; i++ {
		ok, _ := s.TryRecordFirstVisit(ctx, fmt.Sprintf("http://dest/%d", i), origin, "s")
		assert.False(t, ok, "recent record %d kept", i)
	}
	for i := range s.expiry {
		assert.Equal(t, i, s.expiry[i].index)
	}
}

func TestVisitStore_LazyExpiryKeepsHeapInSync(t *testing.T) {
	s, clock := newStore(time.Minute)
	ctx := context.Background()

	_, _ = s.TryRecordFirstVisit(ctx, "http://a", origin, "s")
	clock.Advance(30 * time.Second)
	_, _ = s.TryRecordFirstVisit(ctx, "http://b", origin, "s")
	clock.Advance(31 * time.Second)

	ok, _ := s.TryRecordFirstVisit(ctx, "http://a", origin, "s")
	assert.True(t, ok, "expired record replaced on access")
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.expiry, 2)

	clock.Advance(30 * time.Second)
	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "only b has expired")
	ok, _ = s.TryRecordFirstVisit(ctx, "http://a", origin, "s")
	assert.False(t, ok)
}
