package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session matches the lookup.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyRevoked is returned by MarkRevoked to every caller but the one
	// that performed the revocation.
	ErrAlreadyRevoked = errors.New("session already revoked")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Store is the durable session record consumed by the rotation engine.
//
// Implementations must be safe for concurrent use and must implement
// MarkRevoked as an atomic compare-and-set.
type Store interface {
	// Create persists a new session row.
	Create(ctx context.Context, sess *Session) error
	// FindByTokenHash returns the row for a refresh-token hash, revoked or not.
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	// FindByID returns the row with the given session id, revoked or not.
	FindByID(ctx context.Context, id string) (*Session, error)
	// MarkRevoked flips the row for tokenHash from active to revoked. It
	// returns ErrAlreadyRevoked if the row was already revoked and
	// ErrNotFound if it does not exist.
	MarkRevoked(ctx context.Context, tokenHash string) error
	// MarkAllRevokedForUser revokes every non-revoked row of userID and
	// returns the rows this call revoked.
	MarkAllRevokedForUser(ctx context.Context, userID string) ([]*Session, error)
	// ListActive returns non-revoked rows expiring after now, newest first.
	ListActive(ctx context.Context, userID string, now time.Time) ([]*Session, error)
	// DeleteExpired physically removes rows that expired before the cutoff.
	// Only the housekeeping sweeper calls it.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
