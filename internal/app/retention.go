package app

import (
	"context"
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/sirupsen/logrus"
)

// DefaultRetentionDays is the pruning horizon for activity log entries and
// terminal workflow instances.
const DefaultRetentionDays = 90

// RetentionService prunes aged activity log entries and terminal workflow
// instances. Runs on its own low-frequency trigger; failures are logged and
// non-fatal.
type RetentionService struct {
	activityLog activity.Repository
	instances   workflow.Repository
	logger      *logrus.Entry
	daysToKeep  int
	now         func() time.Time
}

func NewRetentionService(
	activityLog activity.Repository,
	instances workflow.Repository,
	logger *logrus.Entry,
	daysToKeep int,
	now func() time.Time,
) *RetentionService {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	if now == nil {
		now = time.Now
	}
	return &RetentionService{
		activityLog: activityLog,
		instances:   instances,
		logger:      logger,
		daysToKeep:  daysToKeep,
		now:         now,
	}
}

// Cleanup deletes entries and terminal instances older than the horizon.
func (s *RetentionService) Cleanup(ctx context.Context) {
	cutoff := s.now().AddDate(0, 0, -s.daysToKeep)
	logCtx := s.logger.WithField("cutoff", cutoff.Format(workflow.DateLayout))

	entries, err := s.activityLog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to prune activity log entries")
	}

	pruned, err := s.instances.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to prune terminal workflow instances")
	}

	summary := fmt.Sprintf("removed %d log entries and %d terminal instances older than %d days",
		entries, pruned, s.daysToKeep)
	if recErr := s.activityLog.Record(ctx, &activity.Entry{
		Action:  activity.ActionRetentionCleanup,
		Status:  activity.StatusSuccess,
		Message: summary,
	}); recErr != nil {
		logCtx.WithError(recErr).Error("Failed to record retention cleanup entry")
	}
	logCtx.WithFields(logrus.Fields{
		"log_entries": entries,
		"instances":   pruned,
	}).Info("Retention cleanup finished")
}
