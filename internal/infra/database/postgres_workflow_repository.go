// internal/infra/database/postgres_workflow_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/workflow"
)

// Custom errors
var ErrWorkflowInstanceNotFound = fmt.Errorf("workflow instance not found")

type PostgresWorkflowRepository struct {
	db *sql.DB
}

func NewPostgresWorkflowRepository(db *sql.DB) *PostgresWorkflowRepository {
	return &PostgresWorkflowRepository{db: db}
}

const instanceColumns = `kind, day, state, snooze_until, snooze_count,
               notified_at, started_at, completed_at, cancelled_at, created_at, updated_at`

func (r *PostgresWorkflowRepository) GetOrCreate(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	insert := `INSERT INTO workflow_instances (kind, day, state)
               VALUES ($1, $2, $3)
               ON CONFLICT (kind, day) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, kind, date, workflow.StatePending); err != nil {
		return nil, fmt.Errorf("error creating workflow instance: %w", err)
	}
	return r.Get(ctx, kind, date)
}

func (r *PostgresWorkflowRepository) Get(ctx context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	query := `SELECT ` + instanceColumns + `
               FROM workflow_instances WHERE kind = $1 AND day = $2`
	inst, err := scanInstance(r.db.QueryRowContext(ctx, query, kind, date))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWorkflowInstanceNotFound
		}
		return nil, fmt.Errorf("error getting workflow instance: %w", err)
	}
	return inst, nil
}

func (r *PostgresWorkflowRepository) Update(ctx context.Context, inst *workflow.Instance) error {
	query := `UPDATE workflow_instances
               SET state = $1, snooze_until = $2, snooze_count = $3,
                   notified_at = $4, started_at = $5, completed_at = $6, cancelled_at = $7,
                   updated_at = NOW()
               WHERE kind = $8 AND day = $9
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		inst.State, inst.SnoozeUntil, inst.SnoozeCount,
		inst.NotifiedAt, inst.StartedAt, inst.CompletedAt, inst.CancelledAt,
		inst.Kind, inst.Date,
	).Scan(&inst.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrWorkflowInstanceNotFound
		}
		return fmt.Errorf("error updating workflow instance: %w", err)
	}
	return nil
}

func (r *PostgresWorkflowRepository) ListByState(ctx context.Context, state workflow.State) ([]*workflow.Instance, error) {
	query := `SELECT ` + instanceColumns + `
               FROM workflow_instances WHERE state = $1 ORDER BY day, kind`
	rows, err := r.db.QueryContext(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("error listing workflow instances by state: %w", err)
	}
	defer rows.Close()

	instances := make([]*workflow.Instance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning workflow instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow instances: %w", err)
	}
	return instances, nil
}

func (r *PostgresWorkflowRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM workflow_instances
               WHERE state IN ($1, $2) AND day < $3`
	res, err := r.db.ExecContext(ctx, query, workflow.StateCompleted, workflow.StateCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error pruning terminal workflow instances: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting pruned workflow instances: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*workflow.Instance, error) {
	inst := &workflow.Instance{}
	var day time.Time
	err := row.Scan(
		&inst.Kind, &day, &inst.State, &inst.SnoozeUntil, &inst.SnoozeCount,
		&inst.NotifiedAt, &inst.StartedAt, &inst.CompletedAt, &inst.CancelledAt,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.Date = day.Format(workflow.DateLayout)
	return inst, nil
}
