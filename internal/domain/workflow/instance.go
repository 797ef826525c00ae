package workflow

import (
	"database/sql"
	"fmt"
	"time"
)

// Kind identifies which daily ritual a workflow instance belongs to.
type Kind string

const (
	KindMorning Kind = "morning"
	KindEvening Kind = "evening"
)

// Kinds lists all known workflow kinds in processing order.
func Kinds() []Kind {
	return []Kind{KindMorning, KindEvening}
}

// ParseKind validates a kind received from an external surface (HTTP path,
// callback button data).
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMorning, KindEvening:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown workflow kind: %q", s)
	}
}

// State represents the lifecycle state of a workflow instance.
type State string

const (
	StatePending   State = "pending"
	StateNotified  State = "notified"
	StateSnoozed   State = "snoozed"
	StateStarted   State = "started"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are accepted from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// DateLayout is the calendar-day format used as part of an instance's
// composite identity. Instances are keyed by day, not timestamp.
const DateLayout = "2006-01-02"

// ParseDate validates a calendar day received from an external surface.
func ParseDate(s string) (string, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid workflow date %q: %w", s, err)
	}
	return d.Format(DateLayout), nil
}

// Instance is the daily occurrence of a ritual workflow, identified by
// (kind, date). Corresponds to the 'workflow_instances' table.
type Instance struct {
	Kind        Kind
	Date        string // calendar day, DateLayout
	State       State
	SnoozeUntil sql.NullTime // set only while State == StateSnoozed
	SnoozeCount int
	NotifiedAt  sql.NullTime
	StartedAt   sql.NullTime
	CompletedAt sql.NullTime
	CancelledAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the composite identity of the instance.
func (i *Instance) Key() string {
	return string(i.Kind) + "/" + i.Date
}
