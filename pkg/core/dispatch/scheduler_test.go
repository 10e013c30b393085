package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

type delivery struct {
	target  string
	payload domain.Notification
	at      time.Time
}

type recordingNotifier struct {
	mu       sync.Mutex
	got      []delivery
	block    chan struct{}
	outcome  domain.DeliveryOutcome
	received chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{outcome: domain.Delivered(200), received: make(chan struct{}, 64)}
}

func (n *recordingNotifier) Deliver(ctx context.Context, target string, payload domain.Notification) domain.DeliveryOutcome {
	n.mu.Lock()
	n.got = append(n.got, delivery{target: target, payload: payload, at: time.Now()})
	block := n.block
	n.mu.Unlock()
	n.received <- struct{}{}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Failed(ctx.Err().Error())
		}
	}
	return n.outcome
}

func (n *recordingNotifier) deliveries() []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivery(nil), n.got...)
}

func waitFor(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestScheduler_FiresOnceAfterDelay(t *testing.T) {
	n := newRecordingNotifier()
	s := NewScheduler(n, zerolog.Nop())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	start := time.Now()
	s.Schedule(domain.DispatchJob{
		Target:  "http://cb",
		Payload: domain.Notification{State: "abc"},
		Delay:   50 * time.Millisecond,
	})
	assert.Less(t, time.Since(start), 40*time.Millisecond, "Schedule must not block")
	assert.Equal(t, 1, s.Pending())

	waitFor(t, n.received, 2*time.Second)
	got := n.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "http://cb", got[0].target)
	assert.Equal(t, "abc", got[0].payload.State)
	assert.GreaterOrEqual(t, got[0].at.Sub(start), 50*time.Millisecond)
	assert.False(t, got[0].payload.Timestamp.IsZero(), "timestamp stamped at fire time")

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, n.deliveries(), 1, "exactly one attempt")
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_FailedDeliveryIsNotRetried(t *testing.T) {
	n := newRecordingNotifier()
	n.outcome = domain.Failed("connection refused")
	s := NewScheduler(n, zerolog.Nop())

	s.Schedule(domain.DispatchJob{Target: "http://cb", Delay: time.Millisecond})
	waitFor(t, n.received, 2*time.Second)
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Len(t, n.deliveries(), 1)
}

func TestScheduler_ConcurrentJobsOutOfOrder(t *testing.T) {
	n := newRecordingNotifier()
	s := NewScheduler(n, zerolog.Nop())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	s.Schedule(domain.DispatchJob{Target: "http://slow", Delay: 150 * time.Millisecond})
	s.Schedule(domain.DispatchJob{Target: "http://fast", Delay: 10 * time.Millisecond})

	waitFor(t, n.received, 2*time.Second)
	waitFor(t, n.received, 2*time.Second)
	got := n.deliveries()
	require.Len(t, got, 2)
	assert.Equal(t, "http://fast", got[0].target)
	assert.Equal(t, "http://slow", got[1].target)
}

func TestScheduler_ShutdownDropsPendingJobs(t *testing.T) {
	n := newRecordingNotifier()
	s := NewScheduler(n, zerolog.Nop())

	for i := 0; i < 3; i++ {
		s.Schedule(domain.DispatchJob{Target: "http://cb", Delay: time.Hour})
	}
	assert.Equal(t, 3, s.Pending())

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 0, s.Pending())
	assert.Empty(t, n.deliveries())

	s.Schedule(domain.DispatchJob{Target: "http://cb", Delay: time.Millisecond})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, n.deliveries(), "jobs after shutdown are dropped")
	assert.NoError(t, s.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestScheduler_ShutdownWaitsForInFlight(t *testing.T) {
	n := newRecordingNotifier()
	n.block = make(chan struct{})
	s := NewScheduler(n, zerolog.Nop())

	s.Schedule(domain.DispatchJob{Target: "http://cb", Delay: time.Millisecond})
	waitFor(t, n.received, 2*time.Second)

	done := make(chan error, 1)
	go func() { done <- s.Shutdown(context.Background()) }()

	select {
	case <-done:
		t.Fatal("shutdown returned while a delivery was in flight")
	case <-time.After(30 * time.Millisecond):
	}
	close(n.block)
	require.NoError(t, <-done)
}

func TestScheduler_ShutdownDeadlineCancelsInFlight(t *testing.T) {
	n := newRecordingNotifier()
	n.block = make(chan struct{})
	defer close(n.block)
	s := NewScheduler(n, zerolog.Nop())

	s.Schedule(domain.DispatchJob{Target: "http://cb", Delay: time.Millisecond})
	waitFor(t, n.received, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
