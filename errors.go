package tokenguard

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsInvalid covers both an unknown email and a wrong
	// password so callers cannot enumerate accounts.
	ErrCredentialsInvalid = errors.New("invalid credentials")
	// ErrAccountLocked is matched by every [*AccountLockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned after a correct password for a
	// deactivated account.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTokenMissing is returned when no token was presented.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenInvalid means a bad signature, wrong kind, wrong issuer or garbage input.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired means a well-formed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked means a valid access token whose session was revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenReuseDetected is returned when a consumed or revoked refresh
	// token is presented; every session of the user has been revoked.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrSessionNotFound is returned by session-addressed operations.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLoginRateLimited is returned by the per-IP login throttle.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUserNotFound is returned by [UserStore] implementations.
	ErrUserNotFound = errors.New("user not found")
	// ErrInternal hides store and cache failures from callers; details are logged.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned when an Engine method is called on nil.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccountLockedError carries the whole minutes left on a lock, rounded up.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minute(s)", e.RemainingMinutes)
}

// Is makes errors.Is(err, ErrAccountLocked) hold.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
