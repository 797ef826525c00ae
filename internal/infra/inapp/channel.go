// internal/infra/inapp/channel.go
package inapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ritual_notification_bot/internal/domain/notify"
)

// HTTPChannel implements notify.Channel by posting the notification into the
// chat transcript service, which surfaces it on the conversational UI.
// The transcript store itself is an external collaborator reached over HTTP.
type HTTPChannel struct {
	endpoint string
	client   *http.Client
}

func NewHTTPChannel(endpoint string) *HTTPChannel {
	return &HTTPChannel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type chatMessage struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Metadata map[string]any `json:"metadata"`
}

func (c *HTTPChannel) Send(ctx context.Context, msg notify.Message) error {
	actions := make([]map[string]string, 0, len(msg.Actions))
	for _, a := range msg.Actions {
		actions = append(actions, map[string]string{
			"label":  a.Label,
			"action": a.Action,
			"param":  a.Param,
			"kind":   msg.Kind,
			"date":   msg.Date,
		})
	}
	payload, err := json.Marshal(chatMessage{
		Title: msg.Title,
		Body:  msg.Body,
		Metadata: map[string]any{
			"source":  "scheduler",
			"kind":    msg.Kind,
			"date":    msg.Date,
			"actions": actions,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode in-app message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build in-app request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post in-app message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("in-app channel returned status %d", resp.StatusCode)
	}
	return nil
}
