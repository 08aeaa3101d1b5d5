// Package jobs runs periodic maintenance for the engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner drops notifications older than the retention horizon.
type Cleaner interface {
	CleanupOldNotifications(ctx context.Context) (int64, error)
}

// Scheduler runs the notification retention sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	cleaner Cleaner
	log     *slog.Logger
	timeout time.Duration
	runs    atomic.Int64
	removed atomic.Int64
}

// NewScheduler registers the sweep under schedule, a standard five-field
// cron expression or a descriptor such as @daily.
func NewScheduler(cleaner Cleaner, schedule string, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		cleaner: cleaner,
		log:     log,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunCleanup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunCleanup performs one sweep. Failures are logged; the next tick retries.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	s.runs.Add(1)
	n, err := s.cleaner.CleanupOldNotifications(ctx)
	if err != nil {
		s.log.Error("notification cleanup failed", "error", err)
		return
	}
	s.removed.Add(n)
	s.log.Info("notification cleanup finished", "deleted", n)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("job scheduler started", "entries", len(s.cron.Entries()))
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("job scheduler stopped")
}

// Runs reports how many sweeps have started.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Removed reports the total notifications deleted by successful sweeps.
func (s *Scheduler) Removed() int64 { return s.removed.Load() }
