// internal/infra/database/postgres_activity_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/activity"
)

// Custom errors
var ErrRunStatusNotFound = fmt.Errorf("scheduler run status not found")

type PostgresActivityRepository struct {
	db *sql.DB
}

func NewPostgresActivityRepository(db *sql.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

func (r *PostgresActivityRepository) Record(ctx context.Context, entry *activity.Entry) error {
	query := `INSERT INTO activity_log (kind, day, action, status, message)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	// Runner-level entries carry no instance key; store the empty day as NULL.
	var day sql.NullString
	if entry.Date != "" {
		day = sql.NullString{String: entry.Date, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, query, entry.Kind, day, entry.Action, entry.Status, entry.Message).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending activity log entry: %w", err)
	}
	return nil
}

func (r *PostgresActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM activity_log WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error pruning activity log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting pruned activity log entries: %w", err)
	}
	return affected, nil
}

// PostgresRunStatusRepository stores the singleton scheduler run status row.
type PostgresRunStatusRepository struct {
	db *sql.DB
}

func NewPostgresRunStatusRepository(db *sql.DB) *PostgresRunStatusRepository {
	return &PostgresRunStatusRepository{db: db}
}

func (r *PostgresRunStatusRepository) Get(ctx context.Context) (*activity.RunStatus, error) {
	query := `SELECT last_run, duration_ms, instances_processed, outcome, error_message
               FROM scheduler_run_status WHERE id = 1`
	status := &activity.RunStatus{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&status.LastRun, &status.DurationMs, &status.InstancesProcessed, &status.Outcome, &status.ErrorMessage,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunStatusNotFound
		}
		return nil, fmt.Errorf("error getting scheduler run status: %w", err)
	}
	return status, nil
}

func (r *PostgresRunStatusRepository) Save(ctx context.Context, status *activity.RunStatus) error {
	query := `INSERT INTO scheduler_run_status (id, last_run, duration_ms, instances_processed, outcome, error_message)
               VALUES (1, $1, $2, $3, $4, $5)
               ON CONFLICT (id) DO UPDATE
               SET last_run = EXCLUDED.last_run,
                   duration_ms = EXCLUDED.duration_ms,
                   instances_processed = EXCLUDED.instances_processed,
                   outcome = EXCLUDED.outcome,
                   error_message = EXCLUDED.error_message`
	if _, err := r.db.ExecContext(ctx, query,
		status.LastRun, status.DurationMs, status.InstancesProcessed, status.Outcome, status.ErrorMessage,
	); err != nil {
		return fmt.Errorf("error saving scheduler run status: %w", err)
	}
	return nil
}
