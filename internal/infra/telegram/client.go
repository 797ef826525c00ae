// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"ritual_notification_bot/internal/domain/notify"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the notify.Channel interface for the external
// push channel using gopkg.in/telebot.v3. The message's channel id is the
// recipient chat id; actions become inline keyboard buttons whose callback
// data encodes {action, param, kind, date} for the response handlers.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

func (tba *TelebotAdapter) Send(_ context.Context, msg notify.Message) error {
	chatID, err := strconv.ParseInt(msg.ChannelID, 10, 64)
	if err != nil {
		return fmt.Errorf("push channel id %q is not a chat id: %w", msg.ChannelID, err)
	}

	markup := &telebot.ReplyMarkup{}
	var startRow, snoozeRow, cancelRow []telebot.Btn
	for _, a := range msg.Actions {
		btn := markup.Data(a.Label, callbackToken(a, msg.Kind, msg.Date))
		switch a.Action {
		case "snooze":
			snoozeRow = append(snoozeRow, btn)
		case "cancel":
			cancelRow = append(cancelRow, btn)
		default:
			startRow = append(startRow, btn)
		}
	}
	var rows []telebot.Row
	for _, row := range [][]telebot.Btn{startRow, snoozeRow, cancelRow} {
		if len(row) > 0 {
			rows = append(rows, markup.Row(row...))
		}
	}
	markup.Inline(rows...)

	text := msg.Title + "\n\n" + msg.Body
	recipient := &telebot.User{ID: chatID}
	_, err = tba.bot.Send(recipient, text, &telebot.SendOptions{ReplyMarkup: markup})
	return err
}

// callbackToken builds the button callback data, e.g.
// "wf_snooze30_morning_2025-06-02" or "wf_start_evening_2025-06-02".
func callbackToken(a notify.Action, kind, date string) string {
	return fmt.Sprintf("wf_%s%s_%s_%s", a.Action, a.Param, kind, date)
}
