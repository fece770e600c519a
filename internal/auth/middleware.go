package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Carrier selects where a deployment transports the access token. One carrier
// is configured per deployment and used for both issuance and verification.
type Carrier string

const (
	CarrierHeader Carrier = "header"
	CarrierCookie Carrier = "cookie"
)

// AccessTokenCookie is the cookie name used in cookie-carrier deployments.
const AccessTokenCookie = "accessToken"

func ParseCarrier(value string) (Carrier, error) {
	switch Carrier(strings.TrimSpace(strings.ToLower(value))) {
	case CarrierHeader, "":
		return CarrierHeader, nil
	case CarrierCookie:
		return CarrierCookie, nil
	default:
		return "", fmt.Errorf("unknown token carrier: %q", value)
	}
}

type contextKey struct{}

var identityContextKey contextKey

// IdentityFromContext returns the identity the middleware attached to the
// request, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// Middleware guards a route with credential verification. Requests without a
// token on the configured carrier are rejected before the downstream handler
// runs; requests with a token that fails verification likewise. On success
// the decoded identity is attached to the request context.
func Middleware(codec *TokenCodec, carrier Carrier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, present := extractToken(r, carrier)
		if !present {
			writeError(w, http.StatusUnauthorized, "Access Denied. No Token found.")
			return
		}

		identity, err := safeVerify(codec, tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid Token")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route already behind Middleware on the admin flag of
// the verified identity.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Access Denied. No Token found.")
			return
		}
		if !identity.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// safeVerify converts a verifier panic into a plain rejection so a hostile
// token can never crash the process or reach a protected handler.
func safeVerify(codec *TokenCodec, tokenStr string) (identity Identity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			identity = Identity{}
			err = ErrInvalidCredential
		}
	}()

	return codec.Verify(tokenStr)
}

func extractToken(r *http.Request, carrier Carrier) (string, bool) {
	switch carrier {
	case CarrierCookie:
		cookie, err := r.Cookie(AccessTokenCookie)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			return "", false
		}
		return strings.TrimSpace(cookie.Value), true
	default:
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			return "", false
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			// A present but unreadable header is an invalid credential,
			// not a missing one.
			return header, true
		}
		return strings.TrimSpace(parts[1]), true
	}
}
