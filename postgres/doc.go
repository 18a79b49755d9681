// Package postgres provides durable pgx-backed implementations of
// [session.Store] and [tokenguard.UserStore], plus the schema they need.
//
// Revocation is a conditional UPDATE (`WHERE NOT is_revoked`); the affected
// row count decides which of several concurrent callers won.
package postgres
