package app

import (
	"context"
	"testing"
	"time"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/workflow"
	idb "ritual_notification_bot/internal/infra/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workflowFixture struct {
	repo     *memWorkflowRepo
	activity *memActivityRepo
	svc      *WorkflowService
	now      time.Time
}

func newWorkflowFixture() *workflowFixture {
	f := &workflowFixture{
		repo:     newMemWorkflowRepo(),
		activity: newMemActivityRepo(),
		now:      time.Date(2025, 6, 2, 9, 2, 0, 0, time.UTC),
	}
	f.svc = NewWorkflowService(f.repo, f.activity, testLogger(), nil, func() time.Time { return f.now })
	return f
}

const testDate = "2025-06-02"

func TestMarkNotified_FromPending(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	inst, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateNotified, inst.State)
	require.True(t, inst.NotifiedAt.Valid)
	assert.Equal(t, f.now, inst.NotifiedAt.Time)
	assert.Equal(t, 1, f.activity.countAction(activity.ActionNotified))
}

func TestMarkNotified_Twice_IsNoOp(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	first, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	second, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateNotified, second.State)
	assert.Equal(t, first.NotifiedAt.Time, second.NotifiedAt.Time, "NotifiedAt is set exactly once")
	assert.Equal(t, 1, f.activity.countAction(activity.ActionTransitionNoOp))
}

func TestSnooze_SetsDeadlineAndCount(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)

	inst, err := f.svc.Snooze(ctx, workflow.KindMorning, testDate, 30)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSnoozed, inst.State)
	require.True(t, inst.SnoozeUntil.Valid)
	assert.Equal(t, f.now.Add(30*time.Minute), inst.SnoozeUntil.Time)
	assert.Equal(t, 1, inst.SnoozeCount)
}

func TestSnooze_InvalidDuration(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)

	_, err = f.svc.Snooze(ctx, workflow.KindMorning, testDate, 45)
	assert.ErrorIs(t, err, ErrInvalidSnoozeDuration)
	assert.Equal(t, workflow.StateNotified, f.repo.mustState(workflow.KindMorning, testDate).State)
}

func TestSnooze_FromPending_Rejected(t *testing.T) {
	f := newWorkflowFixture()

	_, err := f.svc.Snooze(context.Background(), workflow.KindMorning, testDate, 15)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, f.activity.countAction(activity.ActionTransitionRejected))
}

func TestSnooze_WhileSnoozed_KeepsDeadline(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	first, err := f.svc.Snooze(ctx, workflow.KindMorning, testDate, 15)
	require.NoError(t, err)

	// A second tap on a stale snooze button is a duplicate, not an extension.
	f.now = f.now.Add(time.Minute)
	second, err := f.svc.Snooze(ctx, workflow.KindMorning, testDate, 15)
	require.NoError(t, err)
	assert.Equal(t, first.SnoozeUntil.Time, second.SnoozeUntil.Time)
	assert.Equal(t, 1, second.SnoozeCount)
}

func TestSnoozeExpiry_Renotify(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	first, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	_, err = f.svc.Snooze(ctx, workflow.KindMorning, testDate, 15)
	require.NoError(t, err)

	f.now = f.now.Add(16 * time.Minute)
	inst, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateNotified, inst.State)
	assert.False(t, inst.SnoozeUntil.Valid, "snooze deadline cleared on leaving snoozed")
	assert.Equal(t, first.NotifiedAt.Time, inst.NotifiedAt.Time)
	assert.Equal(t, 1, inst.SnoozeCount)
}

func TestStartAndComplete(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err)

	inst, err := f.svc.Start(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateStarted, inst.State)
	require.True(t, inst.StartedAt.Valid)

	inst, err = f.svc.Complete(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCompleted, inst.State)
	require.True(t, inst.CompletedAt.Valid)
}

func TestComplete_Twice_Idempotent(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err)
	first, err := f.svc.Complete(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err)

	second, err := f.svc.Complete(ctx, workflow.KindEvening, testDate)
	require.NoError(t, err, "second complete returns success")
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.CompletedAt.Time, second.CompletedAt.Time)
}

func TestComplete_WithoutStart_Rejected(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, workflow.KindMorning, testDate)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelledInstance_IsImmutable(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	cancelled, err := f.svc.Cancel(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCancelled, cancelled.State)
	require.True(t, cancelled.CancelledAt.Valid)

	// No transition mutates a terminal instance; every attempt is a no-op
	// success for the client.
	for name, attempt := range map[string]func() (*workflow.Instance, error){
		"notify": func() (*workflow.Instance, error) {
			return f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
		},
		"snooze": func() (*workflow.Instance, error) {
			return f.svc.Snooze(ctx, workflow.KindMorning, testDate, 15)
		},
		"start": func() (*workflow.Instance, error) {
			return f.svc.Start(ctx, workflow.KindMorning, testDate)
		},
		"complete": func() (*workflow.Instance, error) {
			return f.svc.Complete(ctx, workflow.KindMorning, testDate)
		},
		"cancel": func() (*workflow.Instance, error) {
			return f.svc.Cancel(ctx, workflow.KindMorning, testDate)
		},
	} {
		inst, err := attempt()
		require.NoErrorf(t, err, "%s on cancelled instance", name)
		assert.Equalf(t, workflow.StateCancelled, inst.State, "%s must not change terminal state", name)
	}
	assert.Equal(t, workflow.StateCancelled, f.repo.mustState(workflow.KindMorning, testDate).State)
}

func TestCompletedInstance_NoOpOnLateTaps(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)

	// Stale notification buttons tapped after completion, and a late
	// scheduler notify, must all return calm no-op success.
	for name, attempt := range map[string]func() (*workflow.Instance, error){
		"notify": func() (*workflow.Instance, error) {
			return f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
		},
		"snooze": func() (*workflow.Instance, error) {
			return f.svc.Snooze(ctx, workflow.KindMorning, testDate, 30)
		},
		"start": func() (*workflow.Instance, error) {
			return f.svc.Start(ctx, workflow.KindMorning, testDate)
		},
	} {
		inst, err := attempt()
		require.NoErrorf(t, err, "%s on completed instance", name)
		assert.Equalf(t, workflow.StateCompleted, inst.State, "%s must not change terminal state", name)
	}
	assert.Equal(t, 3, f.activity.countAction(activity.ActionTransitionNoOp))
	assert.Equal(t, 0, f.activity.countAction(activity.ActionTransitionRejected))
}

func TestStatus_DoesNotCreateInstance(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	inst, err := f.svc.Status(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePending, inst.State)

	_, err = f.repo.Get(ctx, workflow.KindMorning, testDate)
	assert.ErrorIs(t, err, idb.ErrWorkflowInstanceNotFound, "status query must not materialize a row")

	_, err = f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	inst, err = f.svc.Status(ctx, workflow.KindMorning, testDate)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateNotified, inst.State)
}

func TestEveryTransitionAppendsActivity(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, _ = f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	_, _ = f.svc.Snooze(ctx, workflow.KindMorning, testDate, 15)
	f.now = f.now.Add(16 * time.Minute)
	_, _ = f.svc.MarkNotified(ctx, workflow.KindMorning, testDate)
	_, _ = f.svc.Cancel(ctx, workflow.KindMorning, testDate)
	_, _ = f.svc.Cancel(ctx, workflow.KindMorning, testDate) // terminal no-op

	assert.Equal(t, []activity.Action{
		activity.ActionNotified,
		activity.ActionSnoozed,
		activity.ActionNotified,
		activity.ActionCancelled,
		activity.ActionTransitionNoOp,
	}, f.activity.actions())
}
