package tokenguard

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/tokenguard/internal/audit"
	"github.com/MrEthical07/tokenguard/internal/lockout"
	"go.uber.org/zap"
)

// LockoutState is the per-user failed-login bookkeeping persisted by
// [UserStore.UpdateLockout]. Zero times mean "never".
type LockoutState = lockout.State

// UserRecord is the subset of a user row the engine needs.
type UserRecord struct {
	ID           string
	Email        string
	Role         string
	PasswordHash string
	Active       bool
	Lockout      LockoutState
}

// UserStore is implemented by the caller's user database. Lookups of an
// unknown user return an error matching [ErrUserNotFound].
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByID(ctx context.Context, userID string) (*UserRecord, error)
	UpdateLockout(ctx context.Context, userID string, state LockoutState) error
}

// LockoutPolicy holds the thresholds a [LockoutRecorder] applies.
type LockoutPolicy = lockout.Policy

// LockoutRecorder is an optional [UserStore] extension that applies one
// failed login atomically in the backing store, so concurrent failures are
// all counted. Stores without it get a read-compute-write via UpdateLockout.
type LockoutRecorder interface {
	RecordLoginFailure(ctx context.Context, userID string, now time.Time, policy LockoutPolicy) (LockoutState, error)
}

// PasswordHasher verifies a plaintext password against a stored hash.
// A mismatch is (false, nil); an error means the hash could not be checked.
type PasswordHasher interface {
	Verify(password string, encodedHash string) (bool, error)
}

// TokenPair is returned by [Engine.Login] and [Engine.Refresh].
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// SessionInfo is the caller-visible view of one active session.
type SessionInfo struct {
	ID        string    `json:"id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// AuthResult is returned by [Engine.ValidateAccess].
type AuthResult struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	ExpiresAt time.Time
}

// AuditEvent is the structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes each event as a structured zap entry.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] logging under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
