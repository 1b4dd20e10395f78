package db

import (
	"context"
	"fmt"

	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

// WithAdvisoryLock runs fn while holding a session advisory lock on a
// dedicated connection. It returns ErrLockNotAcquired without running fn when
// another session holds the lock.
func (db *DB) WithAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var acquired bool

	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("try acquire advisory lock: %w", err)
	}

	if !acquired {
		return fmt.Errorf("advisory lock %d: %w", lockID, apperrors.ErrLockNotAcquired)
	}

	defer func() {
		//nolint:errcheck,contextcheck // unlock is best-effort, the lock dies with the session anyway
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)
	}()

	return fn(ctx)
}
