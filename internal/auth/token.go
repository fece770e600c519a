package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential means no token was presented at all.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential covers bad signatures, wrong token types and any
	// other verification failure that is not expiry or a parse error.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential means the token verified but its lifetime is over.
	ErrExpiredCredential = errors.New("expired credential")
	// ErrMalformedCredential means the string is not a parseable token.
	ErrMalformedCredential = errors.New("malformed credential")
)

// Identity is the verified subject carried by an access token.
type Identity struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// TokenCodec issues and verifies HS256 access tokens with a fixed lifetime.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Issue signs a new access token for the identity and returns it together
// with its lifetime in seconds.
func (c *TokenCodec) Issue(identity Identity) (string, int64, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": identity.Subject,
		"usr": identity.Username,
		"adm": identity.IsAdmin,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
		"typ": "access",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}
	return token, int64(c.ttl.Seconds()), nil
}

// Verify checks the token's signature, lifetime and type and returns the
// identity it carries. Failures map onto the credential error taxonomy so
// callers can distinguish missing, expired, malformed and invalid tokens.
func (c *TokenCodec) Verify(tokenStr string) (Identity, error) {
	identity, _, err := c.verify(tokenStr)
	return identity, err
}

// RemainingValidity reports how long the token stays valid. Expired or
// otherwise unverifiable tokens return the corresponding credential error.
func (c *TokenCodec) RemainingValidity(tokenStr string) (time.Duration, error) {
	_, claims, err := c.verify(tokenStr)
	if err != nil {
		return 0, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, ErrInvalidCredential
	}

	remaining := time.Until(exp.Time)
	if remaining < 0 {
		return 0, ErrExpiredCredential
	}
	return remaining, nil
}

func (c *TokenCodec) verify(tokenStr string) (Identity, jwt.MapClaims, error) {
	if tokenStr == "" {
		return Identity{}, nil, ErrMissingCredential
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, nil, ErrExpiredCredential
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, nil, ErrMalformedCredential
		default:
			return Identity{}, nil, ErrInvalidCredential
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, nil, ErrInvalidCredential
	}
	if typ, _ := claims["typ"].(string); typ != "access" {
		return Identity{}, nil, ErrInvalidCredential
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, nil, ErrInvalidCredential
	}
	username, _ := claims["usr"].(string)
	isAdmin, _ := claims["adm"].(bool)

	return Identity{Subject: sub, Username: username, IsAdmin: isAdmin}, claims, nil
}
