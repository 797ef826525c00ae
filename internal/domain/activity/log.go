package activity

import (
	"context"
	"time"
)

// Action names the scheduler or state-machine event an entry records.
type Action string

const (
	ActionNotificationSent   Action = "notification_sent"
	ActionNotificationFailed Action = "notification_failed"
	ActionNotified           Action = "notified"
	ActionSnoozed            Action = "snoozed"
	ActionStarted            Action = "started"
	ActionCompleted          Action = "completed"
	ActionCancelled          Action = "cancelled"
	ActionTransitionNoOp     Action = "transition_noop"
	ActionTransitionRejected Action = "transition_rejected"
	ActionRunCompleted       Action = "run_completed"
	ActionRunSkippedLock     Action = "run_skipped_lock"
	ActionStaleLockRecovered Action = "stale_lock_recovered"
	ActionRunTimeout         Action = "run_timeout"
	ActionRetentionCleanup   Action = "retention_cleanup"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is one append-only activity log record. Never mutated after insert;
// pruned by age only.
type Entry struct {
	ID        int64
	Kind      string // workflow kind, empty for runner-level events
	Date      string // instance date, empty for runner-level events
	Action    Action
	Status    string
	Message   string
	CreatedAt time.Time
}

// Repository defines append and prune operations for the activity log.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
