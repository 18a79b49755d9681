package tokenguard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tokenguard/fingerprint"
	"github.com/MrEthical07/tokenguard/internal/lockout"
	"github.com/MrEthical07/tokenguard/internal/rate"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/password"
	"github.com/MrEthical07/tokenguard/session"
	"go.uber.org/zap"
)

// sessionMeta is the request context a session row is scoped to.
type sessionMeta struct {
	IP          string
	UserAgent   string
	Fingerprint string
}

// Login verifies credentials, consults the lockout state and, on success,
// creates a new session row and returns its token pair.
//
// An unknown email and a wrong password both return [ErrCredentialsInvalid].
// A locked account returns an [*AccountLockedError] regardless of the
// password. A deactivated account is reported only after a correct password.
//
//	Performance: one user lookup, one password verification, one session write.
func (e *Engine) Login(ctx context.Context, email, pass string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)
	email = normalizeEmail(email)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginFailed, false, "", "", ErrLoginRateLimited, reasonMeta("rate_limited"))
				return nil, ErrLoginRateLimited
			}
			// The throttle is an extra layer over lockout; an outage must not
			// block logins.
			e.logger.Warn("login throttle unavailable", zap.Error(err))
		}
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.burnPasswordCheck(pass)
			e.recordThrottleFailure(ctx, ip)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailed, false, "", "", ErrCredentialsInvalid, reasonMeta("unknown_email"))
			return nil, ErrCredentialsInvalid
		}
		return nil, e.internalError("login user lookup", err)
	}

	now := e.now()
	if locked, remaining := e.guard.Locked(user.Lockout, now); locked {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, false, user.ID, "", ErrAccountLocked, reasonMeta("locked"))
		return nil, &AccountLockedError{RemainingMinutes: lockout.RemainingMinutes(remaining)}
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if errors.Is(err, password.ErrPasswordTooLong) {
		ok, err = false, nil
	}
	if err != nil {
		return nil, e.internalError("login password verification", err, zap.String("user_id", user.ID))
	}
	if !ok {
		return nil, e.loginFailed(ctx, user, ip, now)
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, false, user.ID, "", ErrAccountInactive, reasonMeta("inactive"))
		return nil, ErrAccountInactive
	}

	if next, changed := e.guard.RecordSuccess(user.Lockout); changed {
		if err := e.users.UpdateLockout(ctx, user.ID, next); err != nil {
			return nil, e.internalError("login lockout reset", err, zap.String("user_id", user.ID))
		}
	}
	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, ip); err != nil {
			e.logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}

	pair, err := e.openSession(ctx, jwt.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, sessionMeta{
		IP:          ip,
		UserAgent:   ua,
		Fingerprint: fingerprint.Derive(ua, ip),
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, user.ID, pair.SessionID, nil, nil)

	return pair, nil
}

// loginFailed runs the lockout failure path and always returns the generic
// credentials error.
func (e *Engine) loginFailed(ctx context.Context, user *UserRecord, ip string, now time.Time) error {
	next, lockedNow, err := e.recordFailure(ctx, user, now)
	if err != nil {
		return e.internalError("login lockout update", err, zap.String("user_id", user.ID))
	}
	e.recordThrottleFailure(ctx, ip)

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailed, false, user.ID, "", ErrCredentialsInvalid, func() map[string]string {
		return map[string]string{
			"reason":          "bad_password",
			"failed_attempts": strconv.Itoa(next.FailedAttempts),
		}
	})

	if lockedNow {
		e.metricInc(MetricAccountLocked)
		e.logger.Warn("account locked",
			zap.String("user_id", user.ID),
			zap.Int("failed_attempts", next.FailedAttempts),
			zap.Time("locked_until", next.LockedUntil),
		)
		e.emitAudit(ctx, auditEventAccountLocked, true, user.ID, "", nil, func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.Itoa(next.FailedAttempts),
				"locked_until":    next.LockedUntil.UTC().Format(time.RFC3339),
			}
		})
	}

	return ErrCredentialsInvalid
}

// recordFailure persists one failed attempt, atomically when the store
// supports it.
func (e *Engine) recordFailure(ctx context.Context, user *UserRecord, now time.Time) (LockoutState, bool, error) {
	if rec, ok := e.users.(LockoutRecorder); ok {
		next, err := rec.RecordLoginFailure(ctx, user.ID, now, e.guard.Policy())
		if err != nil {
			return LockoutState{}, false, err
		}
		return next, next.FailedAttempts >= e.guard.Policy().MaxAttempts, nil
	}

	next, lockedNow := e.guard.RecordFailure(user.Lockout, now)
	if err := e.users.UpdateLockout(ctx, user.ID, next); err != nil {
		return LockoutState{}, false, err
	}
	return next, lockedNow, nil
}

// UnlockAccount clears the lockout fields of userID immediately, independent
// of the lock timer, and records actor in the audit trail.
func (e *Engine) UnlockAccount(ctx context.Context, userID, actor string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if _, err := e.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return e.internalError("unlock user lookup", err, zap.String("user_id", userID))
	}
	if err := e.users.UpdateLockout(ctx, userID, lockout.Unlock()); err != nil {
		return e.internalError("unlock lockout update", err, zap.String("user_id", userID))
	}

	e.metricInc(MetricAccountUnlocked)
	e.emitAuditAs(ctx, actor, auditEventAccountUnlocked, true, userID, "", nil, nil)
	return nil
}

// openSession mints a token pair bound to a fresh session id and persists
// the row.
func (e *Engine) openSession(ctx context.Context, id jwt.Identity, meta sessionMeta) (*TokenPair, error) {
	id.SessionID = session.NewID()

	access, accessExp, err := e.issuer.IssueAccess(id)
	if err != nil {
		return nil, e.internalError("issue access token", err, zap.String("user_id", id.UserID))
	}
	refresh, refreshExp, err := e.issuer.IssueRefresh(id)
	if err != nil {
		return nil, e.internalError("issue refresh token", err, zap.String("user_id", id.UserID))
	}

	sess := &session.Session{
		ID:              id.SessionID,
		UserID:          id.UserID,
		TokenHash:       jwt.Hash(refresh),
		AccessTokenHash: jwt.Hash(access),
		AccessExpiresAt: accessExp,
		IssuedAt:        e.now(),
		ExpiresAt:       refreshExp,
		IPAddress:       meta.IP,
		UserAgent:       meta.UserAgent,
		Fingerprint:     meta.Fingerprint,
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, e.internalError("create session", err, zap.String("user_id", id.UserID))
	}
	e.metricInc(MetricSessionCreated)

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        sess.ID,
	}, nil
}

func (e *Engine) burnPasswordCheck(pass string) {
	if e.dummyHash == "" {
		return
	}
	_, _ = e.hasher.Verify(pass, e.dummyHash)
}

func (e *Engine) recordThrottleFailure(ctx context.Context, ip string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.IncrementLogin(ctx, ip); err != nil {
		e.logger.Warn("login throttle increment failed", zap.Error(err))
	}
}

func reasonMeta(reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": reason}
	}
}
