package tokenguard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/session"
	"go.uber.org/zap"
)

// Logout revokes the session behind refreshToken and blacklists both of its
// tokens without grace. An expired refresh token still logs out its row.
// Logging out an already revoked session is a no-op.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return ErrTokenMissing
	}
	if _, err := e.issuer.VerifyRefresh(refreshToken); err != nil && !errors.Is(err, jwt.ErrExpired) {
		return ErrTokenInvalid
	}

	hash := jwt.Hash(refreshToken)
	sess, err := e.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return e.internalError("logout session lookup", err)
	}

	wctx := context.WithoutCancel(ctx)
	if err := e.sessions.MarkRevoked(wctx, hash); err != nil {
		if errors.Is(err, session.ErrAlreadyRevoked) {
			return nil
		}
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return e.internalError("logout mark revoked", err, zap.String("session_id", sess.ID))
	}
	e.blacklistSession(wctx, sess, e.now())

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogout, true, sess.UserID, sess.ID, nil, nil)
	return nil
}

// RevokeSession revokes one session owned by userID. A session that does
// not exist, belongs to someone else or is already revoked is reported as
// [ErrSessionNotFound].
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sess, err := e.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return e.internalError("revoke session lookup", err, zap.String("session_id", sessionID))
	}
	if sess.UserID != userID {
		return ErrSessionNotFound
	}

	wctx := context.WithoutCancel(ctx)
	if err := e.sessions.MarkRevoked(wctx, sess.TokenHash); err != nil {
		if errors.Is(err, session.ErrAlreadyRevoked) || errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return e.internalError("revoke session", err, zap.String("session_id", sessionID))
	}
	e.blacklistSession(wctx, sess, e.now())

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
	return nil
}

// RevokeAllSessions revokes every active session of userID and returns how
// many rows this call revoked.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.revokeAll(context.WithoutCancel(ctx), userID)
	if err != nil {
		return 0, e.internalError("revoke all sessions", err, zap.String("user_id", userID))
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventAllSessionsRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"revoked_sessions": strconv.Itoa(n)}
	})
	return n, nil
}

func (e *Engine) revokeAll(ctx context.Context, userID string) (int, error) {
	revoked, err := e.sessions.MarkAllRevokedForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := e.now()
	for _, sess := range revoked {
		e.blacklistSession(ctx, sess, now)
		e.metricInc(MetricSessionRevoked)
	}
	return len(revoked), nil
}

// blacklistSession writes durable markers for the refresh token and the
// access token minted with it, each bounded by its own expiry. Failures are
// logged only: the store already says revoked.
func (e *Engine) blacklistSession(ctx context.Context, sess *session.Session, now time.Time) {
	if err := e.revocation.Blacklist(ctx, sess.TokenHash, e.markerTTL(sess.ExpiresAt, now)); err != nil {
		e.logger.Warn("refresh token blacklist failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
	if sess.AccessTokenHash == "" {
		return
	}
	if err := e.revocation.Blacklist(ctx, sess.AccessTokenHash, e.markerTTL(sess.AccessExpiresAt, now)); err != nil {
		e.logger.Warn("access token blacklist failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// markerTTL keeps a revocation marker alive for as long as the issuer still
// accepts the token, which is its expiry plus the verification leeway.
func (e *Engine) markerTTL(expiresAt, now time.Time) time.Duration {
	return expiresAt.Sub(now) + e.config.JWT.Leeway
}
