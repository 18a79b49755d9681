package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures on write paths.
var ErrUnavailable = errors.New("revocation cache unavailable")

// Cache records hashed tokens that must be rejected before their expiry.
type Cache interface {
	// Blacklist inserts the durable marker with the given TTL and cancels any
	// grace window. A TTL <= 0 is a no-op: the token has already expired on
	// its own.
	Blacklist(ctx context.Context, tokenHash string, ttl time.Duration) error
	// BlacklistWithGrace inserts the durable marker and a grace marker that
	// suppresses the positive answer for the grace period.
	BlacklistWithGrace(ctx context.Context, tokenHash string, ttl, grace time.Duration) error
	// IsBlacklisted reports whether tokenHash carries the durable marker and
	// no grace marker. Backend failures yield false.
	IsBlacklisted(ctx context.Context, tokenHash string) bool
}

func clampGrace(ttl, grace time.Duration) time.Duration {
	if grace > ttl {
		return ttl
	}
	return grace
}
