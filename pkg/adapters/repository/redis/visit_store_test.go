package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

const origin = "https://links.example.com"

func newTestStore(t *testing.T, retention time.Duration) (*VisitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewVisitStore(context.Background(), "redis://"+mr.Addr(), "test:", retention)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestVisitStore_FirstThenRepeat(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	ok, err := s.TryRecordFirstVisit(ctx, "http://dest", origin, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryRecordFirstVisit(ctx, "http://dest", origin, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TryRecordFirstVisit(ctx, "http://dest", origin, "xyz")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVisitStore_KeyLayout(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	_, err := s.TryRecordFirstVisit(context.Background(), "http://dest", origin, "abc")
	require.NoError(t, err)

	key := "test:visit:" + domain.NewVisitKey(origin, "http://dest").String()
	members, err := mr.Members(key)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, members)
}

func TestVisitStore_TTLAnchoredToFirstVisitor(t *testing.T) {
	s, mr := newTestStore(t, 10*time.Minute)
	ctx := context.Background()
	key := "test:visit:" + domain.NewVisitKey(origin, "http://dest").String()

	_, err := s.TryRecordFirstVisit(ctx, "http://dest", origin, "first")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mr.TTL(key))

	mr.FastForward(6 * time.Minute)
	ok, err := s.TryRecordFirstVisit(ctx, "http://dest", origin, "second")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4*time.Minute, mr.TTL(key), "ttl must not be refreshed")

	mr.FastForward(4*time.Minute + time.Second)
	assert.False(t, mr.Exists(key))

	ok, err = s.TryRecordFirstVisit(ctx, "http://dest", origin, "first")
	require.NoError(t, err)
	assert.True(t, ok, "expired record is treated as never visited")
}

func TestVisitStore_ConcurrentFirstVisit(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	const n = 32

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryRecordFirstVisit(context.Background(), "http://dest", origin, "same")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestVisitStore_BackendUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewVisitStoreWithClient(client, "", time.Hour)
	t.Cleanup(func() { _ = s.Close() })

	mr.Close()
	ok, err := s.TryRecordFirstVisit(context.Background(), "http://dest", origin, "abc")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestNewVisitStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewVisitStore(context.Background(), "redis://"+addr, "", time.Hour)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, err = NewVisitStore(context.Background(), "://bad", "", time.Hour)
	assert.Error(t, err)
}
