// Package scheduler runs the daily ingest-and-build job on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"fudata/internal/config"
)

// Job is the unit of scheduled work: one full daily run for a trade date.
type Job func(ctx context.Context, date time.Time) error

// Scheduler triggers the daily job per the configured cron spec. The trade
// date of each run is the wall-clock date at trigger time.
type Scheduler struct {
	cron   *cron.Cron
	cfg    config.SchedulerConfig
	job    Job
	logger *slog.Logger
}

// New creates a scheduler around job.
func New(cfg config.SchedulerConfig, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		job:    job,
		logger: logger,
	}
}

// Start registers the cron entry and runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		date := time.Now().UTC()
		s.logger.Info("scheduled run starting",
			slog.String("date", date.Format("2006-01-02")))
		if err := s.job(ctx, date); err != nil {
			s.logger.Error("scheduled run failed",
				slog.String("date", date.Format("2006-01-02")),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Info("scheduled run completed",
			slog.String("date", date.Format("2006-01-02")))
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", slog.String("cron_spec", s.cfg.CronSpec))

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	// Let an in-flight run finish before returning.
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return nil
}
