package client

import (
	"sync"
	"time"
)

// ThrottleState is the observable state of the login throttle.
type ThrottleState int

const (
	ThrottleIdle ThrottleState = iota
	ThrottleCounting
	ThrottleLocked
)

const (
	defaultThrottleThreshold = 3
	defaultThrottleCooldown  = 30 * time.Second
)

// Throttle limits repeated login submissions after consecutive failures. It
// is a courtesy that keeps a client from hammering the login endpoint; the
// authoritative rate limiting lives server-side.
//
// States: Idle (no recent failures), Counting (some failures below the
// threshold), Locked (threshold reached, cooling down). Reaching the
// threshold locks for the cooldown; the cooldown expiring returns to Idle
// with the counter at zero.
type Throttle struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	failures    int
	lockedUntil time.Time
	now         func() time.Time
}

func NewThrottle(threshold int, cooldown time.Duration) *Throttle {
	if threshold <= 0 {
		threshold = defaultThrottleThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultThrottleCooldown
	}
	return &Throttle{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a submission may be dispatched now. While locked it
// returns false and the time left in the cooldown; a lapsed cooldown resets
// the failure counter and allows the submission.
func (t *Throttle) Allow() (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lockedUntil.IsZero() {
		remaining := t.lockedUntil.Sub(t.now())
		if remaining > 0 {
			return false, remaining
		}
		t.lockedUntil = time.Time{}
		t.failures = 0
	}

	return true, 0
}

// RecordFailure counts one failed submission and locks once the threshold is
// reached.
func (t *Throttle) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lockedUntil.IsZero() && t.now().Before(t.lockedUntil) {
		return
	}

	t.failures++
	if t.failures >= t.threshold {
		t.lockedUntil = t.now().Add(t.cooldown)
		t.failures = 0
	}
}

// RecordSuccess resets the throttle to Idle.
func (t *Throttle) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	t.lockedUntil = time.Time{}
}

// LockFor imposes a lockout of the given length, used when the server
// reports its own throttling.
func (t *Throttle) LockFor(d time.Duration) {
	if d <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	t.lockedUntil = t.now().Add(d)
}

// State returns the current state, the failure count while Counting, and the
// cooldown remaining while Locked.
func (t *Throttle) State() (ThrottleState, int, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lockedUntil.IsZero() {
		remaining := t.lockedUntil.Sub(t.now())
		if remaining > 0 {
			return ThrottleLocked, 0, remaining
		}
	}
	if t.failures > 0 {
		return ThrottleCounting, t.failures, 0
	}
	return ThrottleIdle, 0, 0
}
