// Package scheduler triggers the automated collector on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one scheduled run.
type Task func(ctx context.Context) error

// Scheduler runs a Task on a standard five-field cron expression.
// Runs never overlap: a tick that arrives while a run is still in progress is skipped.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	logger   *slog.Logger
}

// New creates a Scheduler that interprets expressions in loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		location: loc,
		logger:   logger,
	}
}

// Schedule registers task under expr. ctx is passed to every run.
func (s *Scheduler) Schedule(ctx context.Context, expr string, task Task) error {
	_, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err, "duration", time.Since(start))
			return
		}
		s.logger.Info("scheduled run finished", "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	s.logger.Info("collector scheduled", "cron", expr, "timezone", s.location.String(), "next", s.Next())
	return nil
}

// Next returns the next activation time, or the zero time if nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now().In(s.location))
}

// Run starts the scheduler and blocks until ctx is done, then waits for a running task to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
