package schedule

import (
	"context"

	"ritual_notification_bot/internal/domain/workflow"
)

// Repository defines the operations for persisting schedule configurations.
// Implementations seed Defaults() when no rows exist yet, so first access
// always observes a complete configuration set.
type Repository interface {
	Get(ctx context.Context, kind workflow.Kind) (*Config, error)
	GetAll(ctx context.Context) ([]*Config, error)
	Update(ctx context.Context, cfg *Config) error
}
