package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"careers-api/internal/auth"
)

const defaultStatusMinInterval = 60 * time.Second

// StatusFetcher obtains the server's authoritative view of the session.
type StatusFetcher interface {
	SessionStatus(ctx context.Context) (auth.SessionStatus, error)
}

// ExpiryTracker reconciles perceived remaining session time against the
// server and decays a local countdown between reconciliations. The tracker
// never reports a positive remaining time it has not obtained from a
// successful refresh or derived by decrementing from one: any refresh
// failure zeroes the estimate.
type ExpiryTracker struct {
	fetcher     StatusFetcher
	minInterval time.Duration
	now         func() time.Time

	mu               sync.Mutex
	loaded           bool
	remaining        time.Duration
	authenticated    bool
	wasAuthenticated bool
	lastFetch        time.Time
}

func NewExpiryTracker(fetcher StatusFetcher, minInterval time.Duration) *ExpiryTracker {
	if minInterval <= 0 {
		minInterval = defaultStatusMinInterval
	}
	return &ExpiryTracker{
		fetcher:     fetcher,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Refresh fetches the session status unless one was fetched within the
// minimum interval. Whatever a completed refresh produces overwrites the
// locally decremented value, including zero on failure.
func (t *ExpiryTracker) Refresh(ctx context.Context) {
	t.mu.Lock()
	if !t.lastFetch.IsZero() && t.now().Sub(t.lastFetch) < t.minInterval {
		t.mu.Unlock()
		return
	}
	t.lastFetch = t.now()
	t.mu.Unlock()

	status, err := t.fetcher.SessionStatus(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.loaded = true
	if err != nil {
		// Fail safe: an unreachable or rejecting status endpoint means
		// no session.
		t.remaining = 0
		t.authenticated = false
		return
	}

	t.remaining = time.Duration(status.TimeRemaining) * time.Millisecond
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.authenticated = status.IsLoggedIn
	if status.IsLoggedIn {
		t.wasAuthenticated = true
	}
}

// Tick decrements the estimate by one second, flooring at zero. It never
// triggers a fetch.
func (t *ExpiryTracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return
	}

	t.remaining -= time.Second
	if t.remaining < 0 {
		t.remaining = 0
	}
}

// Run drives the tracker until the context is cancelled: an immediate
// refresh, then a once-per-second tick with interval-gated refreshes. No
// state is updated after cancellation.
func (t *ExpiryTracker) Run(ctx context.Context) {
	t.Refresh(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
			t.Refresh(ctx)
		}
	}
}

// Remaining returns the current estimate.
func (t *ExpiryTracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Status renders the estimate for display: a countdown while the session is
// live, an expiry message that distinguishes a timed-out session from never
// having logged in, and a loading placeholder before the first refresh.
func (t *ExpiryTracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case !t.loaded:
		return "Loading..."
	case t.remaining > 0 && t.authenticated:
		return FormatRemaining(t.remaining)
	case t.wasAuthenticated:
		return "Session expired. Please log in again."
	default:
		return "Not logged in."
	}
}

// FormatRemaining renders a duration as "Xm Ys remaining".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int(d / time.Second)
	return fmt.Sprintf("%dm %ds remaining", totalSeconds/60, totalSeconds%60)
}
