package runlock

import (
	"context"
	"time"
)

// Name is the single lease guarding scheduler runs.
const Name = "scheduler_run"

// Lease is a time-stamped claim preventing concurrent scheduler runs.
// A lease older than its maximum age is considered abandoned by a crashed
// run and may be taken over.
type Lease struct {
	Name       string
	Owner      string // unique per acquisition attempt
	AcquiredAt time.Time
}

// AcquireResult reports the outcome of an acquisition attempt.
type AcquireResult struct {
	Acquired bool
	// TookOverStale is set when acquisition succeeded by replacing a lease
	// older than maxAge (self-healing after a crashed run).
	TookOverStale bool
}

// Store is the injectable lease backend. Acquisition must be atomic with
// respect to concurrent callers: exactly one of two simultaneous attempts
// for the same name may succeed.
type Store interface {
	Acquire(ctx context.Context, name, owner string, now time.Time, maxAge time.Duration) (AcquireResult, error)
	// Release removes the lease only if still held by owner.
	Release(ctx context.Context, name, owner string) error
}
