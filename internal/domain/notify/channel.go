package notify

import "context"

// Action is a button attached to a notification. Tapping it must round-trip
// {kind, date, action, param} back into the state machine through the
// channel's callback surface.
type Action struct {
	Label  string
	Action string // start, snooze, cancel
	Param  string // e.g. snooze minutes
}

// Message is the channel-agnostic content of a workflow notification.
type Message struct {
	ChannelID string // opaque channel routing identifier, may be empty for channels with fixed routing
	Title     string
	Body      string
	Kind      string
	Date      string
	Actions   []Action
}

// Channel is a notification-delivery capability. The dispatcher depends only
// on this interface; concrete adapters deliver via the external push channel
// or the in-application chat surface.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}
