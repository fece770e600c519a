// Package client is the native consumer of the careers API: it holds the
// authenticated session, throttles repeated login attempts, and tracks how
// much validity the session has left.
package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"careers-api/internal/auth"
)

// Session pairs a verified identity with the credential that proved it. The
// two always travel together; there is no state with one and not the other.
type Session struct {
	Identity auth.Identity `json:"identity"`
	Token    string        `json:"token"`
}

// SessionStore owns the client session. Login and Logout replace the whole
// session atomically, and the token is persisted to a file so a restart can
// rehydrate identity state. The persisted copy is display-state only; the
// token is always re-sent through the normal carrier to be trusted.
type SessionStore struct {
	mu      sync.Mutex
	session *Session
	path    string
}

// DefaultSessionPath is the fixed per-user location of the persisted session.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "careers", "session.json"), nil
}

// NewSessionStore builds a store persisting to path. An existing session file
// is rehydrated; an unreadable one starts the store unauthenticated.
func NewSessionStore(path string) *SessionStore {
	s := &SessionStore{path: path}
	s.rehydrate()
	return s
}

// Login replaces the current session with the new identity/token pair. It
// cannot fail: a persistence problem leaves the in-memory session intact.
func (s *SessionStore) Login(identity auth.Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &Session{Identity: identity, Token: token}
	s.persistLocked()
}

// Logout clears the session and the persisted file. It cannot fail.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	if s.path != "" {
		_ = os.Remove(s.path)
	}
}

// Current returns the session, if one exists.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Token returns the held credential, or empty when unauthenticated.
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ""
	}
	return s.session.Token
}

// IsAdmin is true iff a session exists and its identity carries the admin
// flag.
func (s *SessionStore) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session != nil && s.session.Identity.IsAdmin
}

func (s *SessionStore) persistLocked() {
	if s.path == "" || s.session == nil {
		return
	}

	data, err := json.Marshal(s.session)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o600)
}

func (s *SessionStore) rehydrate() {
	if s.path == "" {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil || session.Token == "" {
		return
	}
	s.session = &session
}
