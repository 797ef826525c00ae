// internal/infra/database/postgres_lease_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ritual_notification_bot/internal/domain/runlock"
)

// PostgresLeaseStore backs the scheduler run lease with a single table row.
// Acquisition is atomic: the insert-or-takeover statements let exactly one
// of two concurrent callers win.
type PostgresLeaseStore struct {
	db *sql.DB
}

func NewPostgresLeaseStore(db *sql.DB) *PostgresLeaseStore {
	return &PostgresLeaseStore{db: db}
}

func (s *PostgresLeaseStore) Acquire(ctx context.Context, name, owner string, now time.Time, maxAge time.Duration) (runlock.AcquireResult, error) {
	insert := `INSERT INTO scheduler_leases (name, owner, acquired_at)
               VALUES ($1, $2, $3)
               ON CONFLICT (name) DO NOTHING`
	res, err := s.db.ExecContext(ctx, insert, name, owner, now)
	if err != nil {
		return runlock.AcquireResult{}, fmt.Errorf("error inserting run lease: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return runlock.AcquireResult{}, fmt.Errorf("error checking run lease insert: %w", err)
	}
	if inserted == 1 {
		return runlock.AcquireResult{Acquired: true}, nil
	}

	// A lease row exists. Take it over only if it is older than maxAge
	// (crashed prior run); otherwise another run is active.
	takeover := `UPDATE scheduler_leases
                  SET owner = $1, acquired_at = $2
                  WHERE name = $3 AND acquired_at <= $4`
	res, err = s.db.ExecContext(ctx, takeover, owner, now, name, now.Add(-maxAge))
	if err != nil {
		return runlock.AcquireResult{}, fmt.Errorf("error taking over stale run lease: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return runlock.AcquireResult{}, fmt.Errorf("error checking run lease takeover: %w", err)
	}
	if updated == 1 {
		return runlock.AcquireResult{Acquired: true, TookOverStale: true}, nil
	}
	return runlock.AcquireResult{}, nil
}

func (s *PostgresLeaseStore) Release(ctx context.Context, name, owner string) error {
	query := `DELETE FROM scheduler_leases WHERE name = $1 AND owner = $2`
	if _, err := s.db.ExecContext(ctx, query, name, owner); err != nil {
		return fmt.Errorf("error releasing run lease: %w", err)
	}
	return nil
}
