// internal/infra/telegram/workflow_response_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ritual_notification_bot/internal/app"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterWorkflowResponseHandlers wires the notification button taps back
// into the workflow state machine. Callback data format is produced by
// callbackToken: wf_<action[param]>_<kind>_<date>.
func RegisterWorkflowResponseHandlers(ctx context.Context, b *telebot.Bot, workflows *app.WorkflowService, baseLogger *logrus.Entry) {
	handlerLogger := baseLogger.WithField("handler_group", "workflow_response")

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		if i := strings.IndexByte(data, '|'); i >= 0 {
			data = data[:i]
		}
		if !strings.HasPrefix(data, "wf_") {
			handlerLogger.WithField("data", data).Warn("Unhandled callback data")
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		parts := strings.Split(data, "_") // wf_<token>_<kind>_<date>
		if len(parts) != 4 {
			c.Bot().OnError(fmt.Errorf("invalid workflow callback data format: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process this action."})
		}

		kind, err := workflow.ParseKind(parts[2])
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid kind in callback %q: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process this action."})
		}
		date, err := workflow.ParseDate(parts[3])
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid date in callback %q: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process this action."})
		}

		logCtx := handlerLogger.WithFields(logrus.Fields{
			"sender_id": c.Sender().ID,
			"kind":      kind,
			"date":      date,
			"token":     parts[1],
		})

		var ack string
		switch token := parts[1]; {
		case token == "start":
			_, err = workflows.Start(ctx, kind, date)
			ack = "Workflow started."
		case token == "cancel":
			_, err = workflows.Cancel(ctx, kind, date)
			ack = "Cancelled for today."
		case strings.HasPrefix(token, "snooze"):
			var minutes int
			minutes, err = strconv.Atoi(strings.TrimPrefix(token, "snooze"))
			if err != nil {
				c.Bot().OnError(fmt.Errorf("invalid snooze token %q: %w", token, err), c)
				return c.Respond(&telebot.CallbackResponse{Text: "Could not process this action."})
			}
			_, err = workflows.Snooze(ctx, kind, date, minutes)
			ack = fmt.Sprintf("Snoozed for %d minutes.", minutes)
		default:
			c.Bot().OnError(fmt.Errorf("unknown workflow callback token: %s", token), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		if err != nil {
			if errors.Is(err, app.ErrInvalidTransition) || errors.Is(err, app.ErrInvalidSnoozeDuration) {
				logCtx.WithError(err).Info("Stale or invalid workflow action tap")
				return c.Respond(&telebot.CallbackResponse{Text: "This action is no longer available."})
			}
			c.Bot().OnError(fmt.Errorf("error handling workflow action %s: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, please try again."})
		}

		logCtx.Info("Workflow action processed")
		return c.Respond(&telebot.CallbackResponse{Text: ack})
	})
}
