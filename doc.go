// Package tokenguard issues and manages short-lived access tokens and
// rotating refresh tokens for an HTTP service, and detects and contains
// refresh-token theft.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Token lifecycle
//
// Login mints an HS256 access token (15m) and refresh token (7d) bound to a
// new session row. Refresh consumes the presented refresh token through an
// atomic compare-and-set on that row and mints a new pair on a new row. Any
// further use of a consumed or revoked refresh token revokes every session of
// the user. Revoking a session blacklists both of its tokens in a shared,
// TTL-bounded revocation cache so outstanding access tokens stop validating
// before their natural expiry.
//
// # Architecture boundaries
//
// tokenguard is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([TokenPair], [SessionInfo], [AuthResult], [MetricsSnapshot]). Lockout state transitions,
// the login throttle, metric storage and audit dispatch live under internal/.
// Token minting lives in jwt, session persistence in session and postgres,
// and the revocation cache in revocation.
//
// # What this package must NOT do
//
//   - Persist or log raw token values; only SHA-256 hashes leave the issuer.
//   - Cache revocation state in process; every instance reads the shared cache.
//   - Hold an in-process lock across a store or cache call.
package tokenguard
