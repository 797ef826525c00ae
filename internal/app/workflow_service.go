package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/workflow"
	idb "ritual_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// ErrInvalidTransition is returned when an action is not legal from the
// instance's current non-terminal state (e.g. complete before start).
var ErrInvalidTransition = fmt.Errorf("transition not allowed from current workflow state")

// ErrInvalidSnoozeDuration is returned when a snooze request carries a
// duration outside the configured set.
var ErrInvalidSnoozeDuration = fmt.Errorf("snooze duration not allowed")

// DefaultSnoozeMinutes is the allowed snooze duration set.
var DefaultSnoozeMinutes = []int{15, 30, 60}

// WorkflowService is the authoritative state machine for workflow instances.
// All transitions, whether triggered by the scheduler runner or by user
// actions, go through it; it is the only writer of instance rows.
//
// Attempts against a terminal instance return the instance unchanged with a
// nil error: duplicate taps on stale notification buttons are expected and
// must stay idempotent for the client.
type WorkflowService struct {
	instances     workflow.Repository
	activityLog   activity.Repository
	logger        *logrus.Entry
	snoozeMinutes []int
	now           func() time.Time
}

func NewWorkflowService(
	instances workflow.Repository,
	activityLog activity.Repository,
	logger *logrus.Entry,
	snoozeMinutes []int,
	now func() time.Time,
) *WorkflowService {
	if len(snoozeMinutes) == 0 {
		snoozeMinutes = DefaultSnoozeMinutes
	}
	if now == nil {
		now = time.Now
	}
	return &WorkflowService{
		instances:     instances,
		activityLog:   activityLog,
		logger:        logger,
		snoozeMinutes: snoozeMinutes,
		now:           now,
	}
}

// SnoozeMinutes returns the allowed snooze duration set.
func (s *WorkflowService) SnoozeMinutes() []int {
	return s.snoozeMinutes
}

// Status reads the instance for (kind, date) without materializing a row.
// A pair that was never touched reads as an untouched pending instance.
func (s *WorkflowService) Status(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	inst, err := s.instances.Get(ctx, kind, date)
	if err != nil {
		if errors.Is(err, idb.ErrWorkflowInstanceNotFound) {
			return &workflow.Instance{Kind: kind, Date: date, State: workflow.StatePending}, nil
		}
		return nil, err
	}
	return inst, nil
}

// MarkNotified advances pending or snoozed instances to notified after a
// successful dispatch. NotifiedAt is set on the first notification only;
// snooze-expiry re-dispatch keeps the original timestamp.
func (s *WorkflowService) MarkNotified(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	inst, err := s.instances.GetOrCreate(ctx, kind, date)
	if err != nil {
		return nil, err
	}
	logCtx := s.transitionLogger("notify", inst)

	switch inst.State {
	case workflow.StatePending, workflow.StateSnoozed:
	case workflow.StateNotified:
		return s.noOp(ctx, logCtx, inst, "already notified")
	default:
		if inst.State.Terminal() {
			return s.noOp(ctx, logCtx, inst, "instance already terminal")
		}
		return s.reject(ctx, logCtx, inst, "notify")
	}

	now := s.now()
	inst.State = workflow.StateNotified
	inst.SnoozeUntil.Valid = false
	if !inst.NotifiedAt.Valid {
		inst.NotifiedAt.Time = now
		inst.NotifiedAt.Valid = true
	}
	if err := s.instances.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to mark instance %s notified: %w", inst.Key(), err)
	}
	s.record(ctx, inst, activity.ActionNotified, activity.StatusSuccess, "instance notified")
	logCtx.Info("Instance transitioned to notified")
	return inst, nil
}

// Snooze defers a notified instance by the given number of minutes.
// A repeated snooze while already snoozed is a duplicate tap and keeps the
// existing deadline.
func (s *WorkflowService) Snooze(ctx context.Context, kind workflow.Kind, date string, minutes int) (*workflow.Instance, error) {
	if !s.allowedSnooze(minutes) {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidSnoozeDuration, minutes)
	}

	inst, err := s.instances.GetOrCreate(ctx, kind, date)
	if err != nil {
		return nil, err
	}
	logCtx := s.transitionLogger("snooze", inst).WithField("minutes", minutes)

	switch inst.State {
	case workflow.StateNotified:
	case workflow.StateSnoozed:
		return s.noOp(ctx, logCtx, inst, "already snoozed")
	default:
		if inst.State.Terminal() {
			return s.noOp(ctx, logCtx, inst, "instance already terminal")
		}
		return s.reject(ctx, logCtx, inst, "snooze")
	}

	now := s.now()
	inst.State = workflow.StateSnoozed
	inst.SnoozeUntil.Time = now.Add(time.Duration(minutes) * time.Minute)
	inst.SnoozeUntil.Valid = true
	inst.SnoozeCount++
	if err := s.instances.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to snooze instance %s: %w", inst.Key(), err)
	}
	s.record(ctx, inst, activity.ActionSnoozed, activity.StatusSuccess,
		fmt.Sprintf("snoozed for %d minutes (count %d)", minutes, inst.SnoozeCount))
	logCtx.WithField("snooze_until", inst.SnoozeUntil.Time).Info("Instance snoozed")
	return inst, nil
}

// Start marks a notified or snoozed instance as started by the user.
func (s *WorkflowService) Start(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	inst, err := s.instances.GetOrCreate(ctx, kind, date)
	if err != nil {
		return nil, err
	}
	logCtx := s.transitionLogger("start", inst)

	switch inst.State {
	case workflow.StateNotified, workflow.StateSnoozed:
	case workflow.StateStarted:
		return s.noOp(ctx, logCtx, inst, "already started")
	default:
		if inst.State.Terminal() {
			return s.noOp(ctx, logCtx, inst, "instance already terminal")
		}
		return s.reject(ctx, logCtx, inst, "start")
	}

	inst.State = workflow.StateStarted
	inst.SnoozeUntil.Valid = false
	if !inst.StartedAt.Valid {
		inst.StartedAt.Time = s.now()
		inst.StartedAt.Valid = true
	}
	if err := s.instances.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to start instance %s: %w", inst.Key(), err)
	}
	s.record(ctx, inst, activity.ActionStarted, activity.StatusSuccess, "workflow started")
	logCtx.Info("Instance transitioned to started")
	return inst, nil
}

// Complete marks a started instance as completed. Terminal.
func (s *WorkflowService) Complete(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	inst, err := s.instances.GetOrCreate(ctx, kind, date)
	if err != nil {
		return nil, err
	}
	logCtx := s.transitionLogger("complete", inst)

	if inst.State != workflow.StateStarted {
		if inst.State.Terminal() {
			return s.noOp(ctx, logCtx, inst, "instance already terminal")
		}
		return s.reject(ctx, logCtx, inst, "complete")
	}

	inst.State = workflow.StateCompleted
	if !inst.CompletedAt.Valid {
		inst.CompletedAt.Time = s.now()
		inst.CompletedAt.Valid = true
	}
	if err := s.instances.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to complete instance %s: %w", inst.Key(), err)
	}
	s.record(ctx, inst, activity.ActionCompleted, activity.StatusSuccess, "workflow completed")
	logCtx.Info("Instance transitioned to completed")
	return inst, nil
}

// Cancel marks a notified or snoozed instance as cancelled for the day.
// Terminal.
func (s *WorkflowService) Cancel(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	inst, err := s.instances.GetOrCreate(ctx, kind, date)
	if err != nil {
		return nil, err
	}
	logCtx := s.transitionLogger("cancel", inst)

	switch inst.State {
	case workflow.StateNotified, workflow.StateSnoozed:
	default:
		if inst.State.Terminal() {
			return s.noOp(ctx, logCtx, inst, "instance already terminal")
		}
		return s.reject(ctx, logCtx, inst, "cancel")
	}

	inst.State = workflow.StateCancelled
	inst.SnoozeUntil.Valid = false
	if !inst.CancelledAt.Valid {
		inst.CancelledAt.Time = s.now()
		inst.CancelledAt.Valid = true
	}
	if err := s.instances.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to cancel instance %s: %w", inst.Key(), err)
	}
	s.record(ctx, inst, activity.ActionCancelled, activity.StatusSuccess, "workflow cancelled for the day")
	logCtx.Info("Instance transitioned to cancelled")
	return inst, nil
}

func (s *WorkflowService) allowedSnooze(minutes int) bool {
	for _, m := range s.snoozeMinutes {
		if m == minutes {
			return true
		}
	}
	return false
}

// noOp records an idempotent transition attempt and returns success.
func (s *WorkflowService) noOp(ctx context.Context, logCtx *logrus.Entry, inst *workflow.Instance, reason string) (*workflow.Instance, error) {
	s.record(ctx, inst, activity.ActionTransitionNoOp, activity.StatusSuccess, reason)
	logCtx.WithField("reason", reason).Info("Transition is a no-op")
	return inst, nil
}

func (s *WorkflowService) reject(ctx context.Context, logCtx *logrus.Entry, inst *workflow.Instance, action string) (*workflow.Instance, error) {
	msg := fmt.Sprintf("%s rejected in state %s", action, inst.State)
	s.record(ctx, inst, activity.ActionTransitionRejected, activity.StatusError, msg)
	logCtx.Warn("Transition rejected")
	return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, msg)
}

func (s *WorkflowService) record(ctx context.Context, inst *workflow.Instance, action activity.Action, status, message string) {
	entry := &activity.Entry{
		Kind:    string(inst.Kind),
		Date:    inst.Date,
		Action:  action,
		Status:  status,
		Message: message,
	}
	if err := s.activityLog.Record(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", action).Error("Failed to append activity log entry")
	}
}

func (s *WorkflowService) transitionLogger(action string, inst *workflow.Instance) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"action": action,
		"kind":   inst.Kind,
		"date":   inst.Date,
		"state":  inst.State,
	})
}
