// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"ritual_notification_bot/internal/app"
	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers the operator commands: /status, /schedule
// and /trigger. All of them are restricted to the configured admin chat.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	adminTelegramID int64,
	schedules *app.ScheduleService,
	runner *app.Runner,
	runs activity.RunStatusRepository,
	baseLogger *logrus.Entry,
) {
	commandLogger := baseLogger.WithField("handler_group", "bot_commands")

	isAdmin := func(c telebot.Context) bool {
		return c.Sender().ID == adminTelegramID
	}

	b.Handle("/start", func(c telebot.Context) error {
		if isAdmin(c) {
			return c.Send("Hi! I deliver your morning and evening ritual notifications. Use /help for commands.")
		}
		return c.Send("Hi! This bot delivers ritual notifications for its owner only.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		if !isAdmin(c) {
			return c.Send("No commands are available for you.")
		}
		var helpText strings.Builder
		helpText.WriteString("Available commands:\n\n")
		helpText.WriteString("`/status`\n - Show the last scheduler run.\n\n")
		helpText.WriteString("`/schedule`\n - Show the configured ritual schedules.\n\n")
		helpText.WriteString("`/trigger [morning|evening]`\n - Force an out-of-band scheduler run.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/status", func(c telebot.Context) error {
		logCtx := commandLogger.WithField("command", "/status").WithField("sender_id", c.Sender().ID)
		if !isAdmin(c) {
			logCtx.Warn("Unauthorized access attempt")
			return c.Send("You are not allowed to run this command.")
		}
		status, err := runs.Get(ctx)
		if err != nil {
			logCtx.WithError(err).Warn("No scheduler run status available")
			return c.Send("No scheduler run has been recorded yet.")
		}
		return c.Send(fmt.Sprintf(
			"Last run: %s\nDuration: %d ms\nInstances processed: %d\nOutcome: %s\n%s",
			status.LastRun.Format("2006-01-02 15:04:05 MST"),
			status.DurationMs, status.InstancesProcessed, status.Outcome, status.ErrorMessage,
		))
	})

	b.Handle("/schedule", func(c telebot.Context) error {
		logCtx := commandLogger.WithField("command", "/schedule").WithField("sender_id", c.Sender().ID)
		if !isAdmin(c) {
			logCtx.Warn("Unauthorized access attempt")
			return c.Send("You are not allowed to run this command.")
		}
		configs, err := schedules.GetAll(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to load schedule configs")
			return c.Send("Could not load the schedule configuration.")
		}
		var sb strings.Builder
		for _, cfg := range configs {
			state := "enabled"
			if !cfg.Enabled {
				state = "disabled"
			}
			sb.WriteString(fmt.Sprintf("%s: %s at %s (%s), channel %q\n",
				cfg.Kind, state, cfg.TimeOfDay, cfg.Timezone, cfg.ChannelID))
		}
		return c.Send(sb.String())
	})

	b.Handle("/trigger", func(c telebot.Context) error {
		logCtx := commandLogger.WithField("command", "/trigger").WithField("sender_id", c.Sender().ID)
		if !isAdmin(c) {
			logCtx.Warn("Unauthorized access attempt")
			return c.Send("You are not allowed to run this command.")
		}

		var kinds []workflow.Kind
		if args := c.Args(); len(args) > 0 {
			kind, err := workflow.ParseKind(args[0])
			if err != nil {
				return c.Send("Usage: /trigger [morning|evening]")
			}
			kinds = append(kinds, kind)
		}

		result, err := runner.RunOnce(ctx, kinds...)
		if err != nil {
			logCtx.WithError(err).Error("Manual trigger failed")
			return c.Send("Manual run failed: " + err.Error())
		}
		if result.SkippedLock {
			return c.Send("A scheduler run is already active; this trigger was skipped.")
		}
		return c.Send(fmt.Sprintf("Manual run finished: %d processed, %d dispatched, outcome %s.",
			result.Processed, result.Dispatched, result.Outcome))
	})
}
