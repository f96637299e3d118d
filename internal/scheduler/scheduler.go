// Package scheduler wraps gocron with per-tag recurring jobs so each
// display instance's refresh can be scheduled and cancelled independently.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

type Scheduler struct {
	scheduler *gocron.Scheduler
}

func New() *Scheduler {
	return &Scheduler{scheduler: gocron.NewScheduler(time.UTC)}
}

// Start begins running jobs asynchronously. Jobs may be added before or
// after Start.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels all future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Schedule registers a recurring job under tag. The first run waits one
// full interval; the caller performs its own immediate first fetch.
func (s *Scheduler) Schedule(tag string, interval time.Duration, job func()) error {
	_, err := s.scheduler.Every(interval).WaitForSchedule().Tag(tag).Do(func() {
		slog.Debug("scheduler: running refresh job", slog.String("tag", tag))
		job()
	})
	return err
}

// Cancel removes the recurring job registered under tag.
func (s *Scheduler) Cancel(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}
