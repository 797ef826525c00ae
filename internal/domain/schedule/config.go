package schedule

import (
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/workflow"
)

// ErrInvalidConfig is returned when a configuration update carries a bad
// time-of-day or an unknown timezone. The stored config is left untouched.
var ErrInvalidConfig = fmt.Errorf("invalid schedule configuration")

// TimeOfDayLayout is the wall-clock format for a workflow's target time.
const TimeOfDayLayout = "15:04"

// Config holds the notification schedule for one workflow kind.
// Corresponds to the 'schedule_configs' table; at most one row per kind.
type Config struct {
	Kind      workflow.Kind
	Enabled   bool
	TimeOfDay string // TimeOfDayLayout, local to Timezone
	Timezone  string // IANA identifier
	ChannelID string // opaque external push channel identifier
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the time-of-day format and the timezone identifier.
func (c *Config) Validate() error {
	if _, err := workflow.ParseKind(string(c.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := time.Parse(TimeOfDayLayout, c.TimeOfDay); err != nil {
		return fmt.Errorf("%w: bad time of day %q", ErrInvalidConfig, c.TimeOfDay)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
	}
	return nil
}

// TargetForNow computes the instant the workflow is scheduled at on the
// calendar day containing now in the config's timezone, along with that
// day formatted as an instance date.
func (c *Config) TargetForNow(now time.Time) (time.Time, string, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
	}
	tod, err := time.Parse(TimeOfDayLayout, c.TimeOfDay)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: bad time of day %q", ErrInvalidConfig, c.TimeOfDay)
	}
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)
	return target, local.Format(workflow.DateLayout), nil
}

// Defaults returns the configs seeded on first access: 09:00 for the
// morning ritual, 18:00 for the evening ritual, both UTC and disabled
// channel routing until configured.
func Defaults() []*Config {
	return []*Config{
		{Kind: workflow.KindMorning, Enabled: true, TimeOfDay: "09:00", Timezone: "UTC"},
		{Kind: workflow.KindEvening, Enabled: true, TimeOfDay: "18:00", Timezone: "UTC"},
	}
}
