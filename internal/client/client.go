package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"careers-api/internal/auth"
)

var (
	// ErrLoginRejected means the server refused the credentials.
	ErrLoginRejected = errors.New("invalid credentials")
	// ErrSessionStatusUnavailable means the status poll failed; callers
	// treat it as an expired session.
	ErrSessionStatusUnavailable = errors.New("session status unavailable")
)

// ThrottledError is returned for a login submission refused client-side
// while the cooldown is active. No request reaches the server.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	seconds := int(e.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("too many failed attempts, retry in %ds", seconds)
}

type Config struct {
	BaseURL           string
	Carrier           auth.Carrier
	HTTPClient        *http.Client
	SessionPath       string
	ThrottleThreshold int
	ThrottleCooldown  time.Duration
	StatusMinInterval time.Duration
}

// Client talks to the careers API on behalf of one user. It owns the session
// store and the login throttle and attaches the credential to every request
// via the deployment's configured carrier.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	carrier     auth.Carrier
	sessions    *SessionStore
	throttle    *Throttle
	minInterval time.Duration

	// Serializes login submissions so a pending result is never
	// double-counted by a concurrent attempt.
	submitMu sync.Mutex
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	carrier := cfg.Carrier
	if carrier == "" {
		carrier = auth.CarrierHeader
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  httpClient,
		carrier:     carrier,
		sessions:    NewSessionStore(cfg.SessionPath),
		throttle:    NewThrottle(cfg.ThrottleThreshold, cfg.ThrottleCooldown),
		minInterval: cfg.StatusMinInterval,
	}
}

func (c *Client) Sessions() *SessionStore {
	return c.sessions
}

func (c *Client) Throttle() *Throttle {
	return c.throttle
}

// NewTracker builds an expiry tracker polling this client's session status.
func (c *Client) NewTracker() *ExpiryTracker {
	return NewExpiryTracker(c, c.minInterval)
}

// Login submits credentials. A submission during the throttle cooldown is
// refused without a network call. A rejected login counts toward the
// throttle; a server-side lockout (429) adopts the server's retry-after.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	allowed, retryAfter := c.throttle.Allow()
	if !allowed {
		return ThrottledError{RetryAfter: retryAfter}
	}

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result auth.LoginResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}

		c.sessions.Login(auth.Identity{
			Subject:  result.User.ID,
			Username: result.User.Username,
			IsAdmin:  result.User.IsAdmin,
		}, result.AccessToken)
		c.throttle.RecordSuccess()
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		retry := retryAfterDuration(resp)
		c.throttle.LockFor(retry)
		return ThrottledError{RetryAfter: retry}

	case resp.StatusCode == http.StatusUnauthorized:
		c.throttle.RecordFailure()
		return fmt.Errorf("%w: %s", ErrLoginRejected, responseError(resp))

	default:
		return fmt.Errorf("login failed: %s", responseError(resp))
	}
}

// Logout discards the session. Purely client-side: the credential is simply
// no longer carried.
func (c *Client) Logout() {
	c.sessions.Logout()
}

// SessionStatus fetches the server's view of the session. Any failure,
// transport or HTTP, is reported as ErrSessionStatusUnavailable.
func (c *Client) SessionStatus(ctx context.Context) (auth.SessionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/session", nil)
	if err != nil {
		return auth.SessionStatus{}, fmt.Errorf("%w: %v", ErrSessionStatusUnavailable, err)
	}
	c.attachCredential(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return auth.SessionStatus{}, fmt.Errorf("%w: %v", ErrSessionStatusUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return auth.SessionStatus{}, fmt.Errorf("%w: status %d", ErrSessionStatusUnavailable, resp.StatusCode)
	}

	var status auth.SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return auth.SessionStatus{}, fmt.Errorf("%w: %v", ErrSessionStatusUnavailable, err)
	}

	return status, nil
}

// Do sends the request with the session credential attached.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.attachCredential(req)
	return c.httpClient.Do(req)
}

func (c *Client) attachCredential(req *http.Request) {
	token := c.sessions.Token()
	if token == "" {
		return
	}

	switch c.carrier {
	case auth.CarrierCookie:
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func retryAfterDuration(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func responseError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return resp.Status
	}
	return body.Error
}
