// internal/infra/database/postgres_schedule_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"
)

// Custom errors
var ErrScheduleConfigNotFound = fmt.Errorf("schedule config not found")

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

func (r *PostgresScheduleRepository) Get(ctx context.Context, kind workflow.Kind) (*schedule.Config, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return nil, err
	}
	query := `SELECT kind, enabled, time_of_day, timezone, channel_id, created_at, updated_at
               FROM schedule_configs WHERE kind = $1`
	cfg := &schedule.Config{}
	err := r.db.QueryRowContext(ctx, query, kind).Scan(
		&cfg.Kind, &cfg.Enabled, &cfg.TimeOfDay, &cfg.Timezone, &cfg.ChannelID, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScheduleConfigNotFound
		}
		return nil, fmt.Errorf("error getting schedule config: %w", err)
	}
	return cfg, nil
}

func (r *PostgresScheduleRepository) GetAll(ctx context.Context) ([]*schedule.Config, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return nil, err
	}
	query := `SELECT kind, enabled, time_of_day, timezone, channel_id, created_at, updated_at
               FROM schedule_configs ORDER BY kind DESC` // morning before evening

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing schedule configs: %w", err)
	}
	defer rows.Close()

	configs := make([]*schedule.Config, 0)
	for rows.Next() {
		cfg := &schedule.Config{}
		if err := rows.Scan(&cfg.Kind, &cfg.Enabled, &cfg.TimeOfDay, &cfg.Timezone, &cfg.ChannelID, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning schedule config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule configs: %w", err)
	}
	return configs, nil
}

func (r *PostgresScheduleRepository) Update(ctx context.Context, cfg *schedule.Config) error {
	query := `UPDATE schedule_configs
               SET enabled = $1, time_of_day = $2, timezone = $3, channel_id = $4, updated_at = NOW()
               WHERE kind = $5
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, cfg.Enabled, cfg.TimeOfDay, cfg.Timezone, cfg.ChannelID, cfg.Kind).Scan(&cfg.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrScheduleConfigNotFound
		}
		return fmt.Errorf("error updating schedule config: %w", err)
	}
	return nil
}

// ensureSeeded inserts the default configs on first access. ON CONFLICT
// keeps concurrent first accesses idempotent.
func (r *PostgresScheduleRepository) ensureSeeded(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedule_configs`).Scan(&count); err != nil {
		return fmt.Errorf("error counting schedule configs: %w", err)
	}
	if count > 0 {
		return nil
	}
	query := `INSERT INTO schedule_configs (kind, enabled, time_of_day, timezone, channel_id)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (kind) DO NOTHING`
	for _, cfg := range schedule.Defaults() {
		if _, err := r.db.ExecContext(ctx, query, cfg.Kind, cfg.Enabled, cfg.TimeOfDay, cfg.Timezone, cfg.ChannelID); err != nil {
			return fmt.Errorf("error seeding default schedule config for %s: %w", cfg.Kind, err)
		}
	}
	return nil
}
