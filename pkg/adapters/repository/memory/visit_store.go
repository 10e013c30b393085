// Package memory is the in-process dedup backend. Its memory lasts as long
// as the process, so it only suits single-instance deployments.
package memory

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

const DefaultMaxRecords = 100_000

type record struct {
	key       domain.VisitKey
	states    map[string]struct{}
	expiresAt time.Time
	index     int
}

// expiryHeap orders records by expiresAt, soonest first.
type expiryHeap []*record

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	rec := x.(*record)
	rec.index = len(*h)
	*h = append(*h, rec)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.index = -1
	*h = old[:n-1]
	return rec
}

type VisitStore struct {
	mu         sync.Mutex
	records    map[domain.VisitKey]*record
	expiry     expiryHeap
	retention  time.Duration
	maxRecords int
	now        func() time.Time
}

type Option func(*VisitStore)

func WithClock(now func() time.Time) Option {
	return func(s *VisitStore) { s.now = now }
}

// WithMaxRecords bounds the number of destinations kept. Values <= 0 keep the default.
func WithMaxRecords(n int) Option {
	return func(s *VisitStore) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}

func NewVisitStore(retention time.Duration, opts ...Option) *VisitStore {
	s := &VisitStore{
		records:    make(map[domain.VisitKey]*record),
		retention:  retention,
		maxRecords: DefaultMaxRecords,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VisitStore) TryRecordFirstVisit(_ context.Context, destination, origin, state string) (bool, error) {
	key := domain.NewVisitKey(origin, destination)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if ok && !now.Before(rec.expiresAt) {
		s.removeLocked(rec)
		ok = false
	}
	if !ok {
		if len(s.records) >= s.maxRecords {
			s.makeRoomLocked(now)
		}
		// the expiry is anchored here and never refreshed
		rec = &record{
			key:       key,
			states:    make(map[string]struct{}, 1),
			expiresAt: now.Add(s.retention),
		}
		s.records[key] = rec
		heap.Push(&s.expiry, rec)
	}

	if _, seen := rec.states[state]; seen {
		return false, nil
	}
	rec.states[state] = struct{}{}
	return true, nil
}

// makeRoomLocked drops expired records, then the soonest to expire if
// still full.
func (s *VisitStore) makeRoomLocked(now time.Time) {
	s.purgeLocked(now)
	if len(s.records) < s.maxRecords || len(s.expiry) == 0 {
		return
	}
	rec := heap.Pop(&s.expiry).(*record)
	delete(s.records, rec.key)
}

func (s *VisitStore) removeLocked(rec *record) {
	heap.Remove(&s.expiry, rec.index)
	delete(s.records, rec.key)
}

func (s *VisitStore) purgeLocked(now time.Time) int64 {
	var n int64
	for len(s.expiry) > 0 && !now.Before(s.expiry[0].expiresAt) {
		rec := heap.Pop(&s.expiry).(*record)
		delete(s.records, rec.key)
		n++
	}
	return n
}

// PurgeExpired removes every record whose retention window has elapsed.
func (s *VisitStore) PurgeExpired(_ context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(now), nil
}

// Len returns the number of destinations currently tracked.
func (s *VisitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *VisitStore) Close() error { return nil }
