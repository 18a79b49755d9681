package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is one issued refresh token and the access token minted with it.
type Session struct {
	ID        string
	UserID    string
	TokenHash string

	AccessTokenHash string
	AccessExpiresAt time.Time

	IssuedAt  time.Time
	ExpiresAt time.Time

	IsRevoked bool
	RevokedAt time.Time

	IPAddress   string
	UserAgent   string
	Fingerprint string
}

// NewID returns a fresh random session identifier.
func NewID() string {
	return uuid.NewString()
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.IsRevoked && now.Before(s.ExpiresAt)
}

// Clone returns a copy that shares no memory with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
