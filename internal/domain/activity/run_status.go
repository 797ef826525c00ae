package activity

import (
	"context"
	"time"
)

const (
	RunOutcomeSuccess = "success"
	RunOutcomeError   = "error"
)

// RunStatus is the most-recent record of a scheduler runner invocation.
// Stored as a singleton row for health/monitoring queries.
type RunStatus struct {
	LastRun            time.Time
	DurationMs         int64
	InstancesProcessed int
	Outcome            string
	ErrorMessage       string
}

// RunStatusRepository persists the singleton scheduler run status.
type RunStatusRepository interface {
	Get(ctx context.Context) (*RunStatus, error)
	Save(ctx context.Context, status *RunStatus) error
}
