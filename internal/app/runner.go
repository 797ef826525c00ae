package app

import (
	"context"
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/runlock"
	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxExecution bounds one runner invocation and doubles as the age
// after which a leftover lease is considered abandoned.
const DefaultMaxExecution = 300 * time.Second

// RunResult summarizes one runner invocation for callers such as the manual
// trigger surface. Lock contention is an expected outcome, not an error.
type RunResult struct {
	SkippedLock  bool
	StaleLease   bool
	Processed    int
	Dispatched   int
	Duration     time.Duration
	Outcome      string
	ErrorMessage string
}

// Runner is the scheduler entry point invoked by the cron trigger once per
// minute, and out-of-band by the manual trigger. Exactly one invocation may
// be active at a time, enforced by the run lease.
type Runner struct {
	schedules    schedule.Repository
	instances    workflow.Repository
	workflows    *WorkflowService
	dispatcher   *Dispatcher
	leases       runlock.Store
	activityLog  activity.Repository
	runs         activity.RunStatusRepository
	logger       *logrus.Entry
	maxExecution time.Duration
	window       time.Duration
	now          func() time.Time
}

func NewRunner(
	schedules schedule.Repository,
	instances workflow.Repository,
	workflows *WorkflowService,
	dispatcher *Dispatcher,
	leases runlock.Store,
	activityLog activity.Repository,
	runs activity.RunStatusRepository,
	logger *logrus.Entry,
	maxExecution time.Duration,
	window time.Duration,
	now func() time.Time,
) *Runner {
	if maxExecution <= 0 {
		maxExecution = DefaultMaxExecution
	}
	if window <= 0 {
		window = DefaultDueWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{
		schedules:    schedules,
		instances:    instances,
		workflows:    workflows,
		dispatcher:   dispatcher,
		leases:       leases,
		activityLog:  activityLog,
		runs:         runs,
		logger:       logger,
		maxExecution: maxExecution,
		window:       window,
		now:          now,
	}
}

// RunOnce executes one scheduler tick: acquire the lease, detect due
// instances, dispatch and transition each, record the run status, release
// the lease. When kinds are given, only those workflow kinds are considered
// (manual trigger). Per-instance failures never abort the batch; the
// external trigger always sees a clean return.
func (r *Runner) RunOnce(ctx context.Context, kinds ...workflow.Kind) (*RunResult, error) {
	start := r.now()
	owner := uuid.NewString()
	logCtx := r.logger.WithField("lease_owner", owner)

	acq, err := r.leases.Acquire(ctx, runlock.Name, owner, start, r.maxExecution)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !acq.Acquired {
		logCtx.Info("Another run is active, skipping this tick")
		r.recordRunEvent(ctx, activity.ActionRunSkippedLock, activity.StatusSuccess, "tick skipped, run lease held by an active run")
		return &RunResult{SkippedLock: true, Outcome: activity.RunOutcomeSuccess}, nil
	}
	defer func() {
		// Release must happen even when the run context is already dead.
		relCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if relErr := r.leases.Release(relCtx, runlock.Name, owner); relErr != nil {
			logCtx.WithError(relErr).Error("Failed to release run lease")
		}
	}()

	if acq.TookOverStale {
		logCtx.Warn("Recovered a stale run lease from a crashed prior run")
		r.recordRunEvent(ctx, activity.ActionStaleLockRecovered, activity.StatusSuccess, "stale run lease removed, proceeding")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.maxExecution)
	defer cancel()

	result := &RunResult{StaleLease: acq.TookOverStale, Outcome: activity.RunOutcomeSuccess}
	r.processDue(runCtx, start, kinds, result, logCtx)

	result.Duration = r.now().Sub(start)
	status := &activity.RunStatus{
		LastRun:            start,
		DurationMs:         result.Duration.Milliseconds(),
		InstancesProcessed: result.Processed,
		Outcome:            result.Outcome,
		ErrorMessage:       result.ErrorMessage,
	}
	if err := r.runs.Save(ctx, status); err != nil {
		logCtx.WithError(err).Error("Failed to record scheduler run status")
	}
	r.recordRunEvent(ctx, activity.ActionRunCompleted, result.Outcome,
		fmt.Sprintf("processed %d due instance(s), dispatched %d", result.Processed, result.Dispatched))
	logCtx.WithFields(logrus.Fields{
		"processed":  result.Processed,
		"dispatched": result.Dispatched,
		"outcome":    result.Outcome,
	}).Info("Scheduler run finished")
	return result, nil
}

func (r *Runner) processDue(ctx context.Context, now time.Time, kinds []workflow.Kind, result *RunResult, logCtx *logrus.Entry) {
	configs, err := r.schedules.GetAll(ctx)
	if err != nil {
		result.Outcome = activity.RunOutcomeError
		result.ErrorMessage = fmt.Sprintf("failed to load schedule configs: %v", err)
		logCtx.WithError(err).Error("Failed to load schedule configs")
		return
	}
	configs = filterConfigs(configs, kinds)

	instances := r.collectInstances(ctx, now, configs, kinds, logCtx)
	due := DueInstances(now, configs, instances, r.window)

	byKind := make(map[workflow.Kind]*schedule.Config, len(configs))
	for _, cfg := range configs {
		byKind[cfg.Kind] = cfg
	}

	for _, d := range due {
		if ctx.Err() != nil {
			result.Outcome = activity.RunOutcomeError
			result.ErrorMessage = "run aborted: max execution time exceeded"
			logCtx.Warn("Run exceeded max execution time, aborting remaining instances")
			r.recordRunEvent(ctx, activity.ActionRunTimeout, activity.StatusError, result.ErrorMessage)
			return
		}
		cfg, ok := byKind[d.Kind]
		if !ok {
			continue
		}
		result.Processed++
		if !r.dispatcher.Dispatch(ctx, cfg, d) {
			// Undelivered instances stay pending/snoozed; the next tick
			// retries while still inside the window.
			continue
		}
		result.Dispatched++
		if _, err := r.workflows.MarkNotified(ctx, d.Kind, d.Date); err != nil {
			logCtx.WithError(err).WithFields(logrus.Fields{
				"kind": d.Kind,
				"date": d.Date,
			}).Error("Failed to transition dispatched instance to notified")
		}
	}
}

// collectInstances materializes today's instance per enabled config plus all
// currently snoozed instances, deduplicated by key.
func (r *Runner) collectInstances(ctx context.Context, now time.Time, configs []*schedule.Config, kinds []workflow.Kind, logCtx *logrus.Entry) []*workflow.Instance {
	seen := make(map[string]bool)
	var instances []*workflow.Instance

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		_, date, err := cfg.TargetForNow(now)
		if err != nil {
			logCtx.WithError(err).WithField("kind", cfg.Kind).Warn("Skipping config with unresolvable target time")
			continue
		}
		inst, err := r.instances.GetOrCreate(ctx, cfg.Kind, date)
		if err != nil {
			logCtx.WithError(err).WithField("kind", cfg.Kind).Error("Failed to materialize today's instance")
			continue
		}
		if !seen[inst.Key()] {
			seen[inst.Key()] = true
			instances = append(instances, inst)
		}
	}

	snoozed, err := r.instances.ListByState(ctx, workflow.StateSnoozed)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list snoozed instances")
		return instances
	}
	for _, inst := range snoozed {
		if len(kinds) > 0 && !kindIn(inst.Kind, kinds) {
			continue
		}
		if !seen[inst.Key()] {
			seen[inst.Key()] = true
			instances = append(instances, inst)
		}
	}
	return instances
}

func (r *Runner) recordRunEvent(ctx context.Context, action activity.Action, status, message string) {
	entry := &activity.Entry{Action: action, Status: status, Message: message}
	if err := r.activityLog.Record(ctx, entry); err != nil {
		r.logger.WithError(err).WithField("action", action).Error("Failed to append runner activity entry")
	}
}

func filterConfigs(configs []*schedule.Config, kinds []workflow.Kind) []*schedule.Config {
	if len(kinds) == 0 {
		return configs
	}
	filtered := make([]*schedule.Config, 0, len(configs))
	for _, cfg := range configs {
		if kindIn(cfg.Kind, kinds) {
			filtered = append(filtered, cfg)
		}
	}
	return filtered
}

func kindIn(kind workflow.Kind, kinds []workflow.Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
