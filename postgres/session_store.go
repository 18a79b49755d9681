package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tokenguard/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, user_id, token_hash, access_token_hash, access_expires_at,
	issued_at, expires_at, is_revoked, revoked_at, ip_address, user_agent, fingerprint`

// SessionStore is a [session.Store] over the tg_sessions table.
type SessionStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewSessionStore returns a store using pool. now defaults to time.Now and
// stamps revoked_at.
func NewSessionStore(pool *pgxpool.Pool, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{pool: pool, now: now}
}

// Create implements [session.Store].
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO tg_sessions (
	id, user_id, token_hash, access_token_hash, access_expires_at,
	issued_at, expires_at, is_revoked, revoked_at, ip_address, user_agent, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`,
		sess.ID,
		sess.UserID,
		sess.TokenHash,
		sess.AccessTokenHash,
		nullTime(sess.AccessExpiresAt),
		sess.IssuedAt.UTC(),
		sess.ExpiresAt.UTC(),
		sess.IsRevoked,
		nullTime(sess.RevokedAt),
		sess.IPAddress,
		sess.UserAgent,
		sess.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByTokenHash implements [session.Store].
func (s *SessionStore) FindByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM tg_sessions WHERE token_hash = $1`, tokenHash)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("find session by token hash: %w", err)
	}
	return sess, nil
}

// FindByID implements [session.Store].
func (s *SessionStore) FindByID(ctx context.Context, id string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM tg_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return sess, nil
}

// MarkRevoked implements [session.Store].
//
//	Security: the UPDATE is conditional on NOT is_revoked, so exactly one
//	concurrent caller observes one affected row.
func (s *SessionStore) MarkRevoked(ctx context.Context, tokenHash string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE tg_sessions
SET is_revoked = TRUE, revoked_at = $2
WHERE token_hash = $1
  AND NOT is_revoked
`, tokenHash, s.now().UTC())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tg_sessions WHERE token_hash = $1)`, tokenHash,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check session exists: %w", err)
	}
	if exists {
		return session.ErrAlreadyRevoked
	}
	return session.ErrNotFound
}

// MarkAllRevokedForUser implements [session.Store].
func (s *SessionStore) MarkAllRevokedForUser(ctx context.Context, userID string) ([]*session.Session, error) {
	rows, err := s.pool.Query(ctx, `
UPDATE tg_sessions
SET is_revoked = TRUE, revoked_at = $2
WHERE user_id = $1
  AND NOT is_revoked
RETURNING `+sessionColumns, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("revoke user sessions: %w", err)
	}
	return collectSessions(rows, "revoke user sessions")
}

// ListActive implements [session.Store].
func (s *SessionStore) ListActive(ctx context.Context, userID string, now time.Time) ([]*session.Session, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+sessionColumns+`
FROM tg_sessions
WHERE user_id = $1
  AND NOT is_revoked
  AND expires_at > $2
ORDER BY issued_at DESC
`, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return collectSessions(rows, "list active sessions")
}

// DeleteExpired implements [session.Store]. Revoked rows that have not yet
// expired are kept so a replay of their token is still recognised.
func (s *SessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tg_sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectSessions(rows pgx.Rows, op string) ([]*session.Session, error) {
	defer rows.Close()

	out := make([]*session.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		sess          session.Session
		accessExpires *time.Time
		revokedAt     *time.Time
	)
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.TokenHash,
		&sess.AccessTokenHash,
		&accessExpires,
		&sess.IssuedAt,
		&sess.ExpiresAt,
		&sess.IsRevoked,
		&revokedAt,
		&sess.IPAddress,
		&sess.UserAgent,
		&sess.Fingerprint,
	); err != nil {
		return nil, err
	}
	if accessExpires != nil {
		sess.AccessExpiresAt = *accessExpires
	}
	if revokedAt != nil {
		sess.RevokedAt = *revokedAt
	}
	return &sess, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
