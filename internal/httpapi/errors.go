package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/tokenguard"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LockedError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	RemainingMinutes int    `json:"remaining_minutes"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusUnauthorized, APIError{Code: code, Message: message})
}

// writeEngineError maps engine errors onto stable status codes and error
// codes. Unknown errors never leak their text.
func writeEngineError(w http.ResponseWriter, err error) {
	var locked *tokenguard.AccountLockedError
	switch {
	case errors.As(err, &locked):
		writeJSON(w, http.StatusLocked, LockedError{
			Code:             "account_locked",
			Message:          "account locked",
			RemainingMinutes: locked.RemainingMinutes,
		})
	case errors.Is(err, tokenguard.ErrCredentialsInvalid):
		writeUnauthorized(w, "invalid_credentials", "invalid email or password")
	case errors.Is(err, tokenguard.ErrAccountInactive):
		writeJSON(w, http.StatusForbidden, APIError{Code: "account_inactive", Message: "account inactive"})
	case errors.Is(err, tokenguard.ErrLoginRateLimited):
		writeJSON(w, http.StatusTooManyRequests, APIError{Code: "rate_limited", Message: "too many login attempts"})
	case errors.Is(err, tokenguard.ErrTokenMissing):
		writeUnauthorized(w, "token_missing", "token missing")
	case errors.Is(err, tokenguard.ErrTokenExpired):
		writeUnauthorized(w, "token_expired", "token expired")
	case errors.Is(err, tokenguard.ErrTokenRevoked):
		writeUnauthorized(w, "token_revoked", "token revoked")
	case errors.Is(err, tokenguard.ErrTokenReuseDetected):
		writeUnauthorized(w, "token_reuse_detected", "refresh token reuse detected, all sessions revoked")
	case errors.Is(err, tokenguard.ErrTokenInvalid):
		writeUnauthorized(w, "token_invalid", "token invalid")
	case errors.Is(err, tokenguard.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, APIError{Code: "session_not_found", Message: "session not found"})
	case errors.Is(err, tokenguard.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, APIError{Code: "user_not_found", Message: "user not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: "internal server error"})
	}
}
