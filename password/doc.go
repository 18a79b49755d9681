// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] verifies hashes written by other services, and [Auto] dispatches
// on the hash prefix so a user table may hold both. NeedsUpgrade reports when
// a stored hash should be replaced after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Lockout and throttling are
// enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other tokenguard package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
