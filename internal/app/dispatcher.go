package app

import (
	"context"
	"fmt"
	"strconv"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/notify"
	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/sirupsen/logrus"
)

// Dispatcher sends a due workflow notification through the external push
// channel and the in-application channel. The instance counts as delivered
// when either channel succeeds; a full failure leaves it undelivered so the
// next tick inside the tolerance window may retry.
type Dispatcher struct {
	push          notify.Channel
	inApp         notify.Channel
	activityLog   activity.Repository
	logger        *logrus.Entry
	snoozeMinutes []int
}

func NewDispatcher(
	push notify.Channel,
	inApp notify.Channel,
	activityLog activity.Repository,
	logger *logrus.Entry,
	snoozeMinutes []int,
) *Dispatcher {
	if len(snoozeMinutes) == 0 {
		snoozeMinutes = DefaultSnoozeMinutes
	}
	return &Dispatcher{
		push:          push,
		inApp:         inApp,
		activityLog:   activityLog,
		logger:        logger,
		snoozeMinutes: snoozeMinutes,
	}
}

// Dispatch sends the notification for one due instance and reports whether
// any channel delivered it. Channel failures are logged, never fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *schedule.Config, due DueInstance) bool {
	msg := d.buildMessage(cfg, due)
	logCtx := d.logger.WithFields(logrus.Fields{
		"kind":   due.Kind,
		"date":   due.Date,
		"resume": due.Resume,
	})

	pushErr := d.push.Send(ctx, msg)
	if pushErr != nil {
		logCtx.WithError(pushErr).Error("Push channel delivery failed")
	}
	inAppErr := d.inApp.Send(ctx, msg)
	if inAppErr != nil {
		logCtx.WithError(inAppErr).Error("In-app channel delivery failed")
	}

	delivered := pushErr == nil || inAppErr == nil
	entry := &activity.Entry{
		Kind:   string(due.Kind),
		Date:   due.Date,
		Action: activity.ActionNotificationSent,
		Status: activity.StatusSuccess,
	}
	if delivered {
		entry.Message = deliveryMessage(pushErr, inAppErr, due.Resume)
		logCtx.Info("Notification dispatched")
	} else {
		entry.Action = activity.ActionNotificationFailed
		entry.Status = activity.StatusError
		entry.Message = fmt.Sprintf("push: %v; in-app: %v", pushErr, inAppErr)
		logCtx.Error("All notification channels failed, instance left for retry on next tick")
	}
	if err := d.activityLog.Record(ctx, entry); err != nil {
		logCtx.WithError(err).Error("Failed to record dispatch outcome")
	}
	return delivered
}

func (d *Dispatcher) buildMessage(cfg *schedule.Config, due DueInstance) notify.Message {
	title, body := ritualCopy(due.Kind, due.Resume)
	actions := []notify.Action{{Label: "Start", Action: "start"}}
	for _, m := range d.snoozeMinutes {
		actions = append(actions, notify.Action{
			Label:  fmt.Sprintf("Snooze %dm", m),
			Action: "snooze",
			Param:  strconv.Itoa(m),
		})
	}
	actions = append(actions, notify.Action{Label: "Cancel today", Action: "cancel"})

	return notify.Message{
		ChannelID: cfg.ChannelID,
		Title:     title,
		Body:      body,
		Kind:      string(due.Kind),
		Date:      due.Date,
		Actions:   actions,
	}
}

func ritualCopy(kind workflow.Kind, resume bool) (title, body string) {
	switch kind {
	case workflow.KindMorning:
		title = "Morning ritual"
		body = "Time to plan your day. Ready to start your morning ritual?"
	case workflow.KindEvening:
		title = "Evening ritual"
		body = "Time to wrap up. Ready to review your day?"
	default:
		title = string(kind)
		body = "Your scheduled workflow is due."
	}
	if resume {
		body = "Snooze is over. " + body
	}
	return title, body
}

func deliveryMessage(pushErr, inAppErr error, resume bool) string {
	prefix := "notification sent"
	if resume {
		prefix = "snooze-expiry notification re-sent"
	}
	switch {
	case pushErr != nil:
		return prefix + " (in-app only, push failed: " + pushErr.Error() + ")"
	case inAppErr != nil:
		return prefix + " (push only, in-app failed: " + inAppErr.Error() + ")"
	default:
		return prefix + " (push and in-app)"
	}
}
