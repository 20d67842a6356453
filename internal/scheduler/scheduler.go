package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is the work a Scheduler triggers, typically a pipeline run.
type Job func(ctx context.Context)

// Scheduler fires a job once a day at a fixed wall-clock time ("HH:MM").
type Scheduler struct {
	at   string
	job  Job
	stop chan struct{}
	now  func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
}

func New(at string, job Job) (*Scheduler, error) {
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	return &Scheduler{
		at:   at,
		job:  job,
		stop: make(chan struct{}),
		now:  time.Now,
	}, nil
}

// Start launches the scheduling goroutine. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	slog.Info("Starting scheduler", "at", s.at)
	go s.loop(ctx)
}

// Stop halts the scheduling goroutine. In-flight jobs are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		timer := time.NewTimer(s.untilNextRun())
		select {
		case <-timer.C:
			slog.Info("Scheduler triggering job", "at", s.at)
			s.job(ctx)
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// untilNextRun computes the wait until the next occurrence of the configured
// wall-clock time, today or tomorrow.
func (s *Scheduler) untilNextRun() time.Duration {
	at, _ := time.Parse("15:04", s.at)
	now := s.now()

	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
