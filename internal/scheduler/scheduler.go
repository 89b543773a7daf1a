// Package scheduler runs periodic maintenance jobs with cron.
package scheduler

import (
	"context"
	"fmt"

	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	cfg    config.SchedulerConfig
	logger zerolog.Logger
}

func New(jobs *Jobs, cfg config.SchedulerConfig, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron scheduler. An empty schedule
// leaves that job disabled.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"session_sweep", s.cfg.SessionSweep, s.jobs.SweepSessions},
		{"bill_status", s.cfg.BillStatus, s.jobs.RefreshBillStatuses},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			s.logger.Info().Str("job", job.name).Msg("job disabled")
			continue
		}
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("schedule %s job: %w", job.name, err)
		}
		s.logger.Info().Str("job", job.name).Str("schedule", job.schedule).Msg("job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
