package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"careers-api/internal/auth/attempts"
)

const (
	defaultMaxAttempts  = 3
	defaultLockDuration = 30 * time.Second
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

// UserStore resolves usernames to stored users.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (User, error)
}

// Service authenticates credentials and issues access tokens. Failed logins
// feed the attempt store, which locks a username after maxAttempts
// consecutive failures.
type Service struct {
	users        UserStore
	attempts     attempts.Store
	codec        *TokenCodec
	maxAttempts  int
	lockDuration time.Duration
}

func NewService(users UserStore, attemptStore attempts.Store, codec *TokenCodec) *Service {
	return &Service{
		users:        users,
		attempts:     attemptStore,
		codec:        codec,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockDuration,
	}
}

func (s *Service) WithLockoutConfig(maxAttempts int, lockDuration time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	password = strings.TrimSpace(password)

	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	attempt, err := s.attempts.Get(ctx, username)
	if err != nil {
		return LoginResult{}, err
	}
	if attempt.Locked(now) {
		return LoginResult{}, ErrLoginLocked{Until: *attempt.LockedUntil}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, s.registerFailure(ctx, username, now)
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, s.registerFailure(ctx, username, now)
	}

	if err := s.attempts.Reset(ctx, username); err != nil {
		return LoginResult{}, err
	}

	identity := Identity{Subject: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}
	token, expiresIn, err := s.codec.Issue(identity)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		User: PublicUser{
			ID:       user.ID,
			Username: user.Username,
			IsAdmin:  user.IsAdmin,
		},
	}, nil
}

// registerFailure records a failed login and reports either the lockout that
// failure triggered or plain invalid credentials.
func (s *Service) registerFailure(ctx context.Context, username string, now time.Time) error {
	lockedUntil, err := s.attempts.RegisterFailure(ctx, username, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return err
	}
	if lockedUntil != nil {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}
