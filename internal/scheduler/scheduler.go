// Package scheduler triggers the background jobs on cron expressions.
// It stands in for a managed job scheduler; jobs must tolerate
// at-least-once delivery.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Cron specs for the periodic jobs.
const (
	SpecBudgetAlerts   = "0 */6 * * *" // every 6 hours
	SpecRecurring      = "0 0 * * *"   // daily at midnight
	SpecMonthlyReports = "0 0 1 * *"   // first of the month
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner with logging and context plumbing.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  zerolog.Logger
}

// New creates a scheduler whose jobs receive ctx and log through log.
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		ctx:  ctx,
		log:  log,
	}
}

// Register schedules fn under the given cron spec. Job errors are logged,
// never propagated: a failed run leaves its work for the next trigger.
func (s *Scheduler) Register(spec, name string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.log.Info().Str("job", name).Msg("Job started")
		if err := fn(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Job failed")
			return
		}
		s.log.Info().Str("job", name).Msg("Job finished")
	})
	if err != nil {
		return fmt.Errorf("scheduler: register %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start begins triggering jobs in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops triggering and waits for running jobs to complete.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
