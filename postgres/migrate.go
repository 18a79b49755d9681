package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`
CREATE TABLE IF NOT EXISTS tg_users (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	role            TEXT NOT NULL DEFAULT '',
	password_hash   TEXT NOT NULL,
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	last_failed_at  TIMESTAMPTZ,
	locked_until    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`
CREATE TABLE IF NOT EXISTS tg_sessions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	token_hash        TEXT NOT NULL UNIQUE,
	access_token_hash TEXT NOT NULL DEFAULT '',
	access_expires_at TIMESTAMPTZ,
	issued_at         TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	is_revoked        BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at        TIMESTAMPTZ,
	ip_address        TEXT NOT NULL DEFAULT '',
	user_agent        TEXT NOT NULL DEFAULT '',
	fingerprint       TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS tg_sessions_user_idx ON tg_sessions (user_id, issued_at DESC)`,
	`CREATE INDEX IF NOT EXISTS tg_sessions_expiry_idx ON tg_sessions (expires_at)`,
}

// Migrate creates the user and session tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema step %d: %w", i+1, err)
			}
		}
		return nil
	})
}
