package attempts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgres builds an attempt store backed by the auth_login_attempts
// table. RegisterFailure runs inside a row-locking transaction so concurrent
// logins for the same username cannot double-count.
func NewPostgres(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Get(ctx context.Context, username string) (Attempt, error) {
	attempt := Attempt{Username: username}

	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until, updated_at
		FROM auth_login_attempts
		WHERE username = $1
	`, username).Scan(&attempt.Failures, &lockedUntil, &attempt.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt, nil
		}
		return Attempt{}, fmt.Errorf("query login attempt: %w", err)
	}
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		attempt.LockedUntil = &value
	}

	return attempt, nil
}

func (s *postgresStore) RegisterFailure(ctx context.Context, username string, threshold int, lockFor time.Duration, now time.Time) (*time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin login attempt tx: %w", err)
	}
	defer tx.Rollback()

	var failed int
	var lockedUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE username = $1
		FOR UPDATE
	`, username).Scan(&failed, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			failed = 0
			lockedUntil = sql.NullTime{}
		} else {
			return nil, fmt.Errorf("lock login attempt row: %w", err)
		}
	}

	if lockedUntil.Valid && now.Before(lockedUntil.Time) {
		until := lockedUntil.Time.UTC()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit existing lock tx: %w", err)
		}
		return &until, nil
	}

	failed++
	var nextLock *time.Time
	var nextLockValue any = nil
	if failed >= threshold {
		until := now.UTC().Add(lockFor)
		nextLock = &until
		nextLockValue = until
		failed = 0
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_login_attempts (username, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username)
		DO UPDATE SET
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`, username, failed, nextLockValue, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert failed login attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit login attempt tx: %w", err)
	}

	return nextLock, nil
}

func (s *postgresStore) Reset(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_login_attempts
		WHERE username = $1
	`, username)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}

	return nil
}

func (s *postgresStore) Purge(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_login_attempts
		WHERE username IN (
			SELECT username
			FROM auth_login_attempts
			WHERE updated_at < $1
			LIMIT $2
		)
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("purge login attempts: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged login attempts: %w", err)
	}

	return deleted, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *postgresStore) Close(ctx context.Context) error {
	return nil
}
