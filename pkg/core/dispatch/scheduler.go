// Package dispatch fires callback notifications after their delay.
//
// Every job gets its own one-shot timer. Jobs live in memory only: Shutdown
// drops the ones still waiting and a crash loses them, which callers accept.
// Delivery failures are logged and counted here and go no further.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-callback-links/pkg/metrics"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

type Scheduler struct {
	notifier ports.Notifier
	log      zerolog.Logger
	now      func() time.Time

	// deliveries run under this context; Shutdown cancels it once its own
	// deadline passes
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	wg sync.WaitGroup
}

func NewScheduler(notifier ports.Notifier, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		notifier: notifier,
		log:      log.With().Str("component", "dispatch").Logger(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[string]*time.Timer),
	}
}

// Schedule arms a timer for job and returns immediately. After Shutdown the
// job is dropped.
func (s *Scheduler) Schedule(job domain.DispatchJob) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Delay < 0 {
		job.Delay = 0
	}
	job.FireAt = s.now().Add(job.Delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn().Str("job_id", job.ID).Str("target", job.Target).Msg("scheduler closed, job dropped")
		metrics.DispatchOutcomes.WithLabelValues("dropped").Inc()
		return
	}

	s.wg.Add(1)
	s.timers[job.ID] = time.AfterFunc(job.Delay, func() { s.fire(job) })

	metrics.DispatchScheduled.Inc()
	metrics.DispatchPending.Inc()
	s.log.Debug().
		Str("job_id", job.ID).
		Str("target", job.Target).
		Dur("delay", job.Delay).
		Time("fire_at", job.FireAt).
		Msg("callback scheduled")
}

func (s *Scheduler) fire(job domain.DispatchJob) {
	defer s.wg.Done()

	s.mu.Lock()
	delete(s.timers, job.ID)
	s.mu.Unlock()
	metrics.DispatchPending.Dec()

	payload := job.Payload
	payload.Timestamp = s.now()

	out := s.notifier.Deliver(s.ctx, job.Target, payload)
	metrics.DispatchOutcomes.WithLabelValues(out.Result()).Inc()

	ev := s.log.Info()
	if !out.Delivered {
		ev = s.log.Warn().Str("reason", out.Reason)
	}
	ev.Str("job_id", job.ID).
		Str("target", job.Target).
		Str("state", payload.State).
		Int("status", out.StatusCode).
		Dur("duration", out.Duration).
		Dur("late_by", payload.Timestamp.Sub(job.FireAt)).
		Msg("callback attempted")
}

// Pending returns the number of jobs still waiting for their timer.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown stops every armed timer, refuses new jobs and waits for in-flight
// deliveries until ctx is done, at which point they are cancelled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := 0
	for id, t := range s.timers {
		// Stop reports false when the callback already started; fire then
		// owns the WaitGroup slot.
		if t.Stop() {
			dropped++
			delete(s.timers, id)
			s.wg.Done()
			metrics.DispatchPending.Dec()
			metrics.DispatchOutcomes.WithLabelValues("dropped").Inc()
		}
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Msg("pending callbacks dropped on shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
