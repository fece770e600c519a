package auth

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginResult is the body of a successful login response.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int64      `json:"expires_in"`
	User        PublicUser `json:"user"`
}

type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// SessionStatus is the body of the session-status endpoint, reporting the
// milliseconds of validity left on the presented credential.
type SessionStatus struct {
	TimeRemaining int64 `json:"timeRemaining"`
	IsLoggedIn    bool  `json:"isLoggedIn"`
}
