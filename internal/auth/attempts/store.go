// Package attempts tracks consecutive failed logins per username and the
// lockout window they trigger. It is the authoritative server-side throttle
// backing the login service.
package attempts

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Attempt is the throttle state for one username.
type Attempt struct {
	Username    string     `json:"username"`
	Failures    int        `json:"failures"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Locked reports whether the attempt is still inside its lockout window.
func (a Attempt) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Store persists login attempt state.
type Store interface {
	// Get returns the current state for the username. An unknown username
	// yields a zero-failure attempt, not an error.
	Get(ctx context.Context, username string) (Attempt, error)

	// RegisterFailure records one failed login at the given time. When the
	// failure count reaches threshold the username is locked for lockFor,
	// the counter resets, and the lock expiry is returned. A failure while
	// an existing lock is active returns that lock unchanged.
	RegisterFailure(ctx context.Context, username string, threshold int, lockFor time.Duration, now time.Time) (*time.Time, error)

	// Reset clears the state for the username after a successful login.
	Reset(ctx context.Context, username string) error

	// Purge removes records not updated since the cutoff and returns how
	// many were deleted.
	Purge(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)

	Close(ctx context.Context) error
}

type Config struct {
	Kind   string
	Memory *MemoryConfig
	Redis  *RedisConfig
	DB     *sql.DB
}

// New selects a store implementation from the config kind.
func New(cfg Config) (Store, error) {
	switch cfg.Kind {
	case "", "postgres":
		if cfg.DB == nil {
			return nil, fmt.Errorf("postgres attempt store requires a database handle")
		}
		return NewPostgres(cfg.DB), nil
	case "memory":
		return NewMemory(cfg), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unknown attempt store kind: %q", cfg.Kind)
	}
}
