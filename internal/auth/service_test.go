package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"careers-api/internal/auth/attempts"
)

type fakeUserStore struct {
	users map[string]User
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (User, error) {
	user, ok := f.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func newTestService(t *testing.T) (*Service, attempts.Store) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &fakeUserStore{users: map[string]User{
		"alice": {ID: "user-1", Username: "alice", PasswordHash: string(hash), IsAdmin: true},
	}}

	store := attempts.NewMemory(attempts.Config{})
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	service := NewService(users, store, NewTokenCodec("test-secret", time.Hour))
	service.WithLockoutConfig(3, 30*time.Second)
	return service, store
}

func TestLoginSuccess(t *testing.T) {
	service, _ := newTestService(t)

	result, err := service.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.AccessToken == "" || result.TokenType != "Bearer" {
		t.Fatalf("unexpected login result: %+v", result)
	}
	if !result.User.IsAdmin || result.User.Username != "alice" {
		t.Fatalf("unexpected user descriptor: %+v", result.User)
	}

	identity, err := service.codec.Verify(result.AccessToken)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if identity.Subject != "user-1" || !identity.IsAdmin {
		t.Fatalf("unexpected identity claims: %+v", identity)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Login(context.Background(), "alice", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUserIndistinguishable(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Login(context.Background(), "mallory", "whatever-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := service.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := service.Login(ctx, "alice", "wrong-password")
	var locked ErrLoginLocked
	if !errors.As(err, &locked) {
		t.Fatalf("third failure should lock, got %v", err)
	}
	if until := time.Until(locked.Until); until <= 0 || until > 30*time.Second {
		t.Fatalf("unexpected lock window: %v", until)
	}

	// Correct credentials are refused while locked.
	if _, err := service.Login(ctx, "alice", "correct-horse"); !errors.As(err, &locked) {
		t.Fatalf("locked login should fail, got %v", err)
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = service.Login(ctx, "alice", "wrong-password")
	}
	if _, err := service.Login(ctx, "alice", "correct-horse"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	attempt, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if attempt.Failures != 0 || attempt.LockedUntil != nil {
		t.Fatalf("attempt state not reset: %+v", attempt)
	}

	// The counter restarted: two more failures must not lock.
	for i := 0; i < 2; i++ {
		if _, err := service.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
}
