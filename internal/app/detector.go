package app

import (
	"time"

	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"
)

// DefaultDueWindow is the tolerance after a workflow's target instant during
// which a pending instance is still considered newly due. Once the window
// closes, a missed instance is not retried until its next scheduled day.
const DefaultDueWindow = 5 * time.Minute

// DueInstance is one workflow instance requiring a dispatch on this tick.
type DueInstance struct {
	Kind workflow.Kind
	Date string
	// Resume is set for snooze-expired instances taking the re-dispatch path
	// rather than the first-notify path.
	Resume bool
}

// DueInstances computes which instances require notification at now, as a
// pure function of its inputs so it can be tested without real timers.
//
// An instance is newly due when its config is enabled, now falls inside
// [target, target+window) for today's target instant, and the instance is
// still pending. An instance is snooze-expired when it is snoozed and its
// snooze deadline has passed. The result is the union of both sets, newly
// due first, in stable input order.
func DueInstances(now time.Time, configs []*schedule.Config, instances []*workflow.Instance, window time.Duration) []DueInstance {
	if window <= 0 {
		window = DefaultDueWindow
	}

	byKey := make(map[string]*workflow.Instance, len(instances))
	for _, inst := range instances {
		byKey[inst.Key()] = inst
	}

	var due []DueInstance
	seen := make(map[string]bool)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		target, date, err := cfg.TargetForNow(now)
		if err != nil {
			// A stored config that no longer validates cannot produce a
			// target instant; it is skipped, not fatal.
			continue
		}
		if now.Before(target) || !now.Before(target.Add(window)) {
			continue
		}
		inst, ok := byKey[string(cfg.Kind)+"/"+date]
		if !ok || inst.State != workflow.StatePending {
			continue
		}
		due = append(due, DueInstance{Kind: cfg.Kind, Date: date})
		seen[inst.Key()] = true
	}

	for _, inst := range instances {
		if inst.State != workflow.StateSnoozed || !inst.SnoozeUntil.Valid {
			continue
		}
		if now.Before(inst.SnoozeUntil.Time) || seen[inst.Key()] {
			continue
		}
		due = append(due, DueInstance{Kind: inst.Kind, Date: inst.Date, Resume: true})
		seen[inst.Key()] = true
	}

	return due
}
