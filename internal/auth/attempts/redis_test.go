package attempts

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newRedisTestStore(t *testing.T) Store {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewRedis(Config{
		Kind:  "redis",
		Redis: &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	return store
}

func TestRedisStoreLockAfterThreshold(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		lock, err := store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now)
		if err != nil {
			t.Fatalf("RegisterFailure returned error: %v", err)
		}
		if lock != nil {
			t.Fatalf("locked before threshold on failure %d", i+1)
		}
	}

	lock, err := store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now)
	if err != nil {
		t.Fatalf("RegisterFailure returned error: %v", err)
	}
	if lock == nil {
		t.Fatal("expected lock at threshold")
	}

	attempt, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !attempt.Locked(now) || attempt.Failures != 0 {
		t.Fatalf("unexpected locked state: %+v", attempt)
	}
}

func TestRedisStoreResetAndUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)

	attempt, err := store.Get(ctx, "nobody")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if attempt.Failures != 0 || attempt.LockedUntil != nil {
		t.Fatalf("unknown user should be a zero attempt: %+v", attempt)
	}

	now := time.Now().UTC()
	_, _ = store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now)

	if err := store.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	attempt, _ = store.Get(ctx, "alice")
	if attempt.Failures != 0 {
		t.Fatalf("reset did not clear failures: %+v", attempt)
	}
}

func TestRedisStoreFailureDuringLockKeepsLock(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, _ = store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now)
	}

	lock, err := store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now.Add(time.Second))
	if err != nil {
		t.Fatalf("RegisterFailure returned error: %v", err)
	}
	if lock == nil {
		t.Fatal("existing lock not preserved")
	}
	if got := lock.Sub(now); got < 29*time.Second || got > 31*time.Second {
		t.Fatalf("unexpected lock expiry: %v", got)
	}
}
