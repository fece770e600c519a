package attempts

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreLockAfterThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{Memory: &MemoryConfig{GCInterval: 10 * time.Millisecond}})
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

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
	if got := lock.Sub(now); got != 30*time.Second {
		t.Fatalf("unexpected lock window: %v", got)
	}

	attempt, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !attempt.Locked(now) {
		t.Fatalf("attempt not locked: %+v", attempt)
	}
	if attempt.Failures != 0 {
		t.Fatalf("counter should reset when locking, got %d", attempt.Failures)
	}
}

func TestMemoryStoreFailureDuringLockKeepsLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{})
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, _ = store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now)
	}

	lock, err := store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now.Add(time.Second))
	if err != nil {
		t.Fatalf("RegisterFailure returned error: %v", err)
	}
	if lock == nil || lock.Sub(now) != 30*time.Second {
		t.Fatalf("existing lock not preserved: %v", lock)
	}
}

func TestMemoryStoreLockExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{})
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, _ = store.RegisterFailure(ctx, "alice", 3, 30*time.Second, now)
	}

	// Past the lock window the next failure counts from one again.
	later := now.Add(31 * time.Second)
	lock, err := store.RegisterFailure(ctx, "alice", 3, 30*time.Second, later)
	if err != nil {
		t.Fatalf("RegisterFailure returned error: %v", err)
	}
	if lock != nil {
		t.Fatalf("expired lock should not re-lock immediately: %v", lock)
	}

	attempt, _ := store.Get(ctx, "alice")
	if attempt.Failures != 1 {
		t.Fatalf("expected counter restart at 1, got %d", attempt.Failures)
	}
}

func TestMemoryStoreResetAndUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{})
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

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

func TestMemoryStorePurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{})
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	_, _ = store.RegisterFailure(ctx, "stale", 3, 30*time.Second, old)
	_, _ = store.RegisterFailure(ctx, "fresh", 3, 30*time.Second, recent)

	deleted, err := store.Purge(ctx, recent.Add(-24*time.Hour), 100)
	if err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 purged record, got %d", deleted)
	}

	attempt, _ := store.Get(ctx, "fresh")
	if attempt.Failures != 1 {
		t.Fatalf("fresh record should survive purge: %+v", attempt)
	}
}
