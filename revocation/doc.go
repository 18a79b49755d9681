// Package revocation implements the TTL-bounded blacklist of token hashes
// that must stop validating before their natural expiry.
//
// # Markers
//
// Each hash may carry a durable "blacklisted" marker and a short-lived
// "grace" marker. While the grace marker exists [Cache.IsBlacklisted]
// reports false even if the durable marker is present. Both markers expire on
// their own; the cache never needs explicit cleanup.
//
// # Failure policy
//
// The cache is best-effort. IsBlacklisted fails open (returns false and logs)
// when the backend is unreachable; the session store remains the
// authoritative revocation source.
//
// # What this package must NOT do
//
//   - Cache revocation state in process memory in front of the shared backend.
//   - Accept or log raw tokens; callers pass hashes only.
package revocation
