package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	codec   *TokenCodec
	carrier Carrier
}

func NewHandler(service *Service, codec *TokenCodec, carrier Carrier) *Handler {
	return &Handler{service: service, codec: codec, carrier: carrier}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Password = strings.TrimSpace(body.Password)
	if !usernameRegex.MatchString(strings.ToLower(body.Username)) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	result, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		var lockedErr ErrLoginLocked
		if errors.As(err, &lockedErr) {
			retryAfter := int(time.Until(lockedErr.Until).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "login temporarily locked")
			return
		}

		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	if h.carrier == CarrierCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     AccessTokenCookie,
			Value:    result.AccessToken,
			Path:     "/",
			MaxAge:   int(result.ExpiresIn),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

// SessionStatus reports how much validity is left on the presented
// credential. Requests without a valid credential get 401; clients treat any
// non-success response as an expired session.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	tokenStr, present := extractToken(r, h.carrier)
	if !present {
		writeError(w, http.StatusUnauthorized, "Access Denied. No Token found.")
		return
	}

	remaining, err := h.codec.RemainingValidity(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid Token")
		return
	}

	writeJSON(w, http.StatusOK, SessionStatus{
		TimeRemaining: remaining.Milliseconds(),
		IsLoggedIn:    true,
	})
}

// Logout clears the access token cookie in cookie-carrier deployments. The
// credential itself stays valid until expiry; discarding it is the client's
// responsibility.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.carrier == CarrierCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     AccessTokenCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
