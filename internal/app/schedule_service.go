package app

import (
	"context"
	"fmt"

	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/sirupsen/logrus"
)

// ScheduleUpdate carries the fields of a configuration update. Nil fields
// are left unchanged.
type ScheduleUpdate struct {
	Enabled   *bool
	TimeOfDay *string
	Timezone  *string
	ChannelID *string
}

// ScheduleService handles schedule configuration reads and updates.
// Invalid updates fail with schedule.ErrInvalidConfig and leave the stored
// config untouched.
type ScheduleService struct {
	configs schedule.Repository
	logger  *logrus.Entry
}

func NewScheduleService(configs schedule.Repository, logger *logrus.Entry) *ScheduleService {
	return &ScheduleService{configs: configs, logger: logger}
}

func (s *ScheduleService) Get(ctx context.Context, kind workflow.Kind) (*schedule.Config, error) {
	return s.configs.Get(ctx, kind)
}

func (s *ScheduleService) GetAll(ctx context.Context) ([]*schedule.Config, error) {
	return s.configs.GetAll(ctx)
}

// Configure applies an update to the config for kind after validating the
// resulting configuration.
func (s *ScheduleService) Configure(ctx context.Context, kind workflow.Kind, update ScheduleUpdate) (*schedule.Config, error) {
	cfg, err := s.configs.Get(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for %s: %w", kind, err)
	}

	candidate := *cfg
	if update.Enabled != nil {
		candidate.Enabled = *update.Enabled
	}
	if update.TimeOfDay != nil {
		candidate.TimeOfDay = *update.TimeOfDay
	}
	if update.Timezone != nil {
		candidate.Timezone = *update.Timezone
	}
	if update.ChannelID != nil {
		candidate.ChannelID = *update.ChannelID
	}

	if err := candidate.Validate(); err != nil {
		s.logger.WithError(err).WithField("kind", kind).Warn("Rejected invalid schedule update")
		return nil, err
	}

	if err := s.configs.Update(ctx, &candidate); err != nil {
		return nil, fmt.Errorf("failed to update config for %s: %w", kind, err)
	}
	s.logger.WithFields(logrus.Fields{
		"kind":        kind,
		"enabled":     candidate.Enabled,
		"time_of_day": candidate.TimeOfDay,
		"timezone":    candidate.Timezone,
	}).Info("Schedule configuration updated")
	return &candidate, nil
}
