package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"careers-api/internal/auth"
	"careers-api/internal/auth/attempts"
)

type staticUserStore struct {
	users map[string]auth.User
}

func (s *staticUserStore) GetByUsername(ctx context.Context, username string) (auth.User, error) {
	user, ok := s.users[username]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

type testBackend struct {
	server    *httptest.Server
	loginHits atomic.Int64
}

// newTestBackend wires the real login handler, session-status handler, and
// authorization gate around in-memory stores, the way the app bootstrap does
// against Postgres.
func newTestBackend(t *testing.T, carrier auth.Carrier, lockoutMax int) *testBackend {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &staticUserStore{users: map[string]auth.User{
		"alice": {ID: "user-1", Username: "alice", PasswordHash: string(hash), IsAdmin: true},
	}}

	store := attempts.NewMemory(attempts.Config{})
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	codec := auth.NewTokenCodec("e2e-secret", time.Hour)
	service := auth.NewService(users, store, codec)
	service.WithLockoutConfig(lockoutMax, time.Minute)
	handler := auth.NewHandler(service, codec, carrier)

	backend := &testBackend{}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backend.loginHits.Add(1)
		handler.Login(w, r)
	}))
	mux.HandleFunc("GET /auth/session", handler.SessionStatus)
	mux.HandleFunc("POST /auth/logout", handler.Logout)
	mux.Handle("GET /jobs/admin", auth.Middleware(codec, carrier, auth.RequireAdmin(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}))))

	backend.server = httptest.NewServer(mux)
	t.Cleanup(backend.server.Close)
	return backend
}

func newTestClient(t *testing.T, backend *testBackend, carrier auth.Carrier) *Client {
	t.Helper()

	return New(Config{
		BaseURL:           backend.server.URL,
		Carrier:           carrier,
		SessionPath:       filepath.Join(t.TempDir(), "session.json"),
		ThrottleThreshold: 3,
		ThrottleCooldown:  30 * time.Second,
	})
}

func TestEndToEndLoginProtectedLogout(t *testing.T) {
	for _, carrier := range []auth.Carrier{auth.CarrierHeader, auth.CarrierCookie} {
		t.Run(string(carrier), func(t *testing.T) {
			backend := newTestBackend(t, carrier, 10)
			c := newTestClient(t, backend, carrier)

			if err := c.Login(context.Background(), "alice", "correct-horse"); err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if !c.Sessions().IsAdmin() {
				t.Fatal("admin flag lost on the client session")
			}

			req, err := http.NewRequest(http.MethodGet, backend.server.URL+"/jobs/admin", nil)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			resp, err := c.Do(req)
			if err != nil {
				t.Fatalf("protected request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200 from protected route, got %d", resp.StatusCode)
			}

			status, err := c.SessionStatus(context.Background())
			if err != nil {
				t.Fatalf("SessionStatus returned error: %v", err)
			}
			if !status.IsLoggedIn || status.TimeRemaining <= 0 {
				t.Fatalf("unexpected session status: %+v", status)
			}

			c.Logout()
			if _, ok := c.Sessions().Current(); ok {
				t.Fatal("session survived logout")
			}

			req, _ = http.NewRequest(http.MethodGet, backend.server.URL+"/jobs/admin", nil)
			resp, err = c.Do(req)
			if err != nil {
				t.Fatalf("request after logout failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
			}

			body, _ := io.ReadAll(resp.Body)
			var payload map[string]string
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decode rejection body: %v", err)
			}
			if payload["error"] != "Access Denied. No Token found." {
				t.Fatalf("unexpected rejection message: %q", payload["error"])
			}
		})
	}
}

func TestEndToEndThrottleBlocksFourthAttempt(t *testing.T) {
	backend := newTestBackend(t, auth.CarrierHeader, 10)
	c := newTestClient(t, backend, auth.CarrierHeader)

	for i := 0; i < 3; i++ {
		err := c.Login(context.Background(), "alice", "wrong-password")
		if !errors.Is(err, ErrLoginRejected) {
			t.Fatalf("attempt %d: expected ErrLoginRejected, got %v", i+1, err)
		}
	}
	if hits := backend.loginHits.Load(); hits != 3 {
		t.Fatalf("expected 3 login requests, saw %d", hits)
	}

	err := c.Login(context.Background(), "alice", "correct-horse")
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("fourth attempt should be throttled client-side, got %v", err)
	}
	if throttled.RetryAfter <= 0 {
		t.Fatalf("throttled error missing retry-after: %+v", throttled)
	}
	if hits := backend.loginHits.Load(); hits != 3 {
		t.Fatalf("throttled attempt reached the server: %d hits", hits)
	}
}

func TestEndToEndServerLockoutAdoptedByClient(t *testing.T) {
	// Server locks at 2 failures, before the client throttle at 3.
	backend := newTestBackend(t, auth.CarrierHeader, 2)
	c := newTestClient(t, backend, auth.CarrierHeader)

	if err := c.Login(context.Background(), "alice", "wrong-password"); !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("expected ErrLoginRejected, got %v", err)
	}

	err := c.Login(context.Background(), "alice", "wrong-password")
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("server lockout should surface as throttled, got %v", err)
	}

	// The client adopted the server lock: no further request goes out.
	before := backend.loginHits.Load()
	if err := c.Login(context.Background(), "alice", "correct-horse"); !errors.As(err, &throttled) {
		t.Fatalf("expected throttled while server-locked, got %v", err)
	}
	if backend.loginHits.Load() != before {
		t.Fatal("locked client still contacted the server")
	}
}

func TestEndToEndSessionStatusUnavailable(t *testing.T) {
	backend := newTestBackend(t, auth.CarrierHeader, 10)
	c := newTestClient(t, backend, auth.CarrierHeader)

	// No credential: the status endpoint rejects, the client reports the
	// poll as unavailable, and the tracker zeroes its estimate.
	if _, err := c.SessionStatus(context.Background()); !errors.Is(err, ErrSessionStatusUnavailable) {
		t.Fatalf("expected ErrSessionStatusUnavailable, got %v", err)
	}

	tracker := c.NewTracker()
	tracker.Refresh(context.Background())
	if remaining := tracker.Remaining(); remaining != 0 {
		t.Fatalf("tracker should report zero without a session, got %v", remaining)
	}
	if got := tracker.Status(); got != "Not logged in." {
		t.Fatalf("unexpected tracker status: %q", got)
	}
}
