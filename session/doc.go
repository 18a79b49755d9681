// Package session provides the durable record of issued refresh-token
// sessions and the [Store] contract the rotation engine consumes.
//
// # Stores
//
// [MemoryStore] is an in-process implementation for tests and demos.
// [RedisStore] keeps one hash per session plus a token-hash index and a
// per-user sorted set. A SQL implementation lives in the postgres package.
//
// # Compare-and-set
//
// [Store.MarkRevoked] is the single point of truth for "has this token
// already been rotated". Every implementation performs it as one atomic
// conditional update; exactly one of any number of concurrent callers
// succeeds and the rest observe [ErrAlreadyRevoked].
//
// # What this package must NOT do
//
//   - Import tokenguard, jwt, or revocation (no upward imports).
//   - Store raw token values; only token hashes are accepted.
//   - Delete rows outside [Store.DeleteExpired], which is reserved for the sweeper.
package session
