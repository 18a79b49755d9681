// Package jwt mints and verifies the HS256 access and refresh tokens used by
// tokenguard, and provides the one-way token hash used as the storage and
// revocation-cache key.
//
// # Architecture boundaries
//
// This package owns claim layout, signing and verification. It performs no I/O
// and knows nothing about sessions, revocation or lockout.
//
// Verification distinguishes [ErrExpired] (routine) from [ErrInvalid]
// (possible tampering); callers must not conflate them.
package jwt
