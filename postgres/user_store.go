package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore is a [tokenguard.UserStore] over the tg_users table.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, role, password_hash, active, failed_attempts, last_failed_at, locked_until`

// FindByEmail implements [tokenguard.UserStore]. Emails are compared
// lowercased.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*tokenguard.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM tg_users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tokenguard.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

// FindByID implements [tokenguard.UserStore].
func (s *UserStore) FindByID(ctx context.Context, userID string) (*tokenguard.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM tg_users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tokenguard.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

// UpdateLockout implements [tokenguard.UserStore].
func (s *UserStore) UpdateLockout(ctx context.Context, userID string, state tokenguard.LockoutState) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE tg_users
SET failed_attempts = $2, last_failed_at = $3, locked_until = $4
WHERE id = $1
`, userID, state.FailedAttempts, nullTime(state.LastFailedAt), nullTime(state.LockedUntil))
	if err != nil {
		return fmt.Errorf("update lockout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tokenguard.ErrUserNotFound
	}
	return nil
}

// recordFailureSQL restarts a streak older than the reset window and locks
// once the threshold is reached, all in one row update so concurrent
// failures serialize on the row lock.
const recordFailureSQL = `
UPDATE tg_users
SET failed_attempts = CASE
		WHEN last_failed_at IS NOT NULL AND $2 - last_failed_at > make_interval(secs => $3) THEN 1
		ELSE failed_attempts + 1
	END,
	last_failed_at = $2,
	locked_until = CASE
		WHEN (CASE
			WHEN last_failed_at IS NOT NULL AND $2 - last_failed_at > make_interval(secs => $3) THEN 1
			ELSE failed_attempts + 1
		END) >= $4 THEN $2 + make_interval(secs => $5)
		ELSE locked_until
	END
WHERE id = $1
RETURNING failed_attempts, last_failed_at, locked_until
`

// RecordLoginFailure implements [tokenguard.LockoutRecorder].
func (s *UserStore) RecordLoginFailure(ctx context.Context, userID string, now time.Time, policy tokenguard.LockoutPolicy) (tokenguard.LockoutState, error) {
	var (
		state       tokenguard.LockoutState
		lastFailed  *time.Time
		lockedUntil *time.Time
	)
	err := s.pool.QueryRow(ctx, recordFailureSQL,
		userID,
		now,
		policy.ResetWindow.Seconds(),
		policy.MaxAttempts,
		policy.LockoutDuration.Seconds(),
	).Scan(&state.FailedAttempts, &lastFailed, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tokenguard.LockoutState{}, tokenguard.ErrUserNotFound
		}
		return tokenguard.LockoutState{}, fmt.Errorf("record login failure: %w", err)
	}
	if lastFailed != nil {
		state.LastFailedAt = *lastFailed
	}
	if lockedUntil != nil {
		state.LockedUntil = *lockedUntil
	}
	return state, nil
}

// Upsert inserts or replaces a user row. It is used by provisioning tools
// and tests; the engine never writes anything but lockout fields.
func (s *UserStore) Upsert(ctx context.Context, u tokenguard.UserRecord) error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO tg_users (id, email, role, password_hash, active, failed_attempts, last_failed_at, locked_until)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	email = EXCLUDED.email,
	role = EXCLUDED.role,
	password_hash = EXCLUDED.password_hash,
	active = EXCLUDED.active,
	failed_attempts = EXCLUDED.failed_attempts,
	last_failed_at = EXCLUDED.last_failed_at,
	locked_until = EXCLUDED.locked_until
`,
		u.ID,
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.Role,
		u.PasswordHash,
		u.Active,
		u.Lockout.FailedAttempts,
		nullTime(u.Lockout.LastFailedAt),
		nullTime(u.Lockout.LockedUntil),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*tokenguard.UserRecord, error) {
	var (
		u           tokenguard.UserRecord
		lastFailed  *time.Time
		lockedUntil *time.Time
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Role,
		&u.PasswordHash,
		&u.Active,
		&u.Lockout.FailedAttempts,
		&lastFailed,
		&lockedUntil,
	); err != nil {
		return nil, err
	}
	if lastFailed != nil {
		u.Lockout.LastFailedAt = *lastFailed
	}
	if lockedUntil != nil {
		u.Lockout.LockedUntil = *lockedUntil
	}
	return &u, nil
}
