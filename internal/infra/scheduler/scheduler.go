package scheduler

import (
	"context"
	"time"

	"ritual_notification_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// WorkflowScheduler owns the time-based triggers: the per-minute tick that
// drives the runner, and the low-frequency retention cleanup.
type WorkflowScheduler struct {
	cronEngine        *cron.Cron
	runner            *app.Runner
	retention         *app.RetentionService
	logger            *logrus.Entry
	cronSpecTick      string
	cronSpecRetention string
	maxExecution      time.Duration
}

func NewWorkflowScheduler(
	runner *app.Runner,
	retention *app.RetentionService,
	logger *logrus.Entry,
	cronSpecTick string, // e.g. "* * * * *" (every minute)
	cronSpecRetention string, // e.g. "0 3 * * *" (03:00 daily)
	maxExecution time.Duration,
) *WorkflowScheduler {
	return &WorkflowScheduler{
		cronEngine:        cron.New(cron.WithLocation(time.Local)),
		runner:            runner,
		retention:         retention,
		logger:            logger,
		cronSpecTick:      cronSpecTick,
		cronSpecRetention: cronSpecRetention,
		maxExecution:      maxExecution,
	}
}

func (s *WorkflowScheduler) Start() {
	s.logger.Info("Starting workflow scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecTick, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.maxExecution+30*time.Second)
		defer cancel()
		if _, err := s.runner.RunOnce(ctx); err != nil {
			// The runner isolates per-instance failures itself; an error here
			// means the tick could not run at all (e.g. lease store down).
			s.logger.WithError(err).Error("Scheduler tick failed")
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add scheduler tick cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecRetention, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.retention.Cleanup(ctx)
	})
	if err != nil {
		s.logger.Fatalf("Could not add retention cleanup cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"tick":      s.cronSpecTick,
		"retention": s.cronSpecRetention,
	}).Info("Workflow scheduler started with jobs")
}

func (s *WorkflowScheduler) Stop() {
	s.logger.Info("Stopping workflow scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Workflow scheduler gracefully stopped")
}
