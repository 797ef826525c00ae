package workflow

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving workflow
// instances. Instances are exclusively owned by the state machine service;
// other components read them or request transitions through it.
type Repository interface {
	// GetOrCreate returns the instance for (kind, date), creating it in the
	// pending state if it does not exist yet. All implicit instance creation
	// funnels through this single path.
	GetOrCreate(ctx context.Context, kind Kind, date string) (*Instance, error)
	Get(ctx context.Context, kind Kind, date string) (*Instance, error)
	Update(ctx context.Context, instance *Instance) error
	// ListByState returns all instances currently in the given state,
	// ordered by date then kind.
	ListByState(ctx context.Context, state State) ([]*Instance, error)
	// DeleteTerminalBefore prunes completed/cancelled instances whose date is
	// older than the cutoff. Used by retention cleanup only.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
