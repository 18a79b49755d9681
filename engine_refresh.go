package tokenguard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tokenguard/fingerprint"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/session"
	"go.uber.org/zap"
)

// Refresh rotates a refresh token: the presented token is consumed and a
// new pair bound to a new session row is returned.
//
// A token that verifies but is blacklisted, has no backing row, has a
// revoked row, or loses the mark-revoked race is treated as stolen: every
// session of the user is revoked and [ErrTokenReuseDetected] is returned.
//
//	Security: the session store's compare-and-set is the single point of
//	truth for "already rotated"; exactly one concurrent caller wins.
//	Performance: one cache read, one store read, one CAS, one cache write,
//	one store write.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrTokenMissing
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricRefreshLatency, time.Since(start))
	}()

	claims, err := e.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, tokenError(err)
	}

	userID := claims.UserID()
	hash := jwt.Hash(refreshToken)

	if e.revocation.IsBlacklisted(ctx, hash) {
		return nil, e.reuseDetected(ctx, userID, claims.SessionID, hash, "blacklisted")
	}

	sess, err := e.sessions.FindByTokenHash(ctx, hash)
	switch {
	case errors.Is(err, session.ErrNotFound) && pastExpiry(claims, e.now()):
		// Inside the leeway the sweeper may already have removed the row.
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenExpired
	case errors.Is(err, session.ErrNotFound):
		return nil, e.reuseDetected(ctx, userID, claims.SessionID, hash, "session_missing")
	case err != nil:
		e.metricInc(MetricRefreshFailure)
		return nil, e.internalError("refresh session lookup", err, zap.String("user_id", userID))
	case sess.IsRevoked:
		// Cut short the grace window rotation gave this row's tokens.
		e.blacklistSession(context.WithoutCancel(ctx), sess, e.now())
		return nil, e.reuseDetected(ctx, userID, sess.ID, hash, "session_revoked")
	case sess.UserID != userID:
		e.metricInc(MetricRefreshFailure)
		e.logger.Error("refresh token subject does not match session owner",
			zap.String("session_id", sess.ID),
			zap.String("token_hash", shortHash(hash)),
		)
		return nil, ErrTokenInvalid
	}

	// From here on the rotation must finish even if the client goes away.
	wctx := context.WithoutCancel(ctx)

	if err := e.sessions.MarkRevoked(wctx, hash); err != nil {
		if errors.Is(err, session.ErrAlreadyRevoked) || errors.Is(err, session.ErrNotFound) {
			e.blacklistSession(wctx, sess, e.now())
			return nil, e.reuseDetected(wctx, userID, sess.ID, hash, "rotation_race")
		}
		e.metricInc(MetricRefreshFailure)
		return nil, e.internalError("refresh mark revoked", err, zap.String("session_id", sess.ID))
	}

	now := e.now()
	grace := e.config.Revocation.GracePeriod
	if err := e.revocation.BlacklistWithGrace(wctx, hash, e.markerTTL(sess.ExpiresAt, now), grace); err != nil {
		e.logger.Warn("refresh token blacklist failed", zap.String("token_hash", shortHash(hash)), zap.Error(err))
	}
	// The superseded access token keeps working for the grace period only.
	if sess.AccessTokenHash != "" {
		if err := e.revocation.BlacklistWithGrace(wctx, sess.AccessTokenHash, e.markerTTL(sess.AccessExpiresAt, now), grace); err != nil {
			e.logger.Warn("access token blacklist failed", zap.String("token_hash", shortHash(sess.AccessTokenHash)), zap.Error(err))
		}
	}

	e.checkFingerprint(ctx, sess)

	pair, err := e.openSession(wctx, jwt.Identity{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, sessionMeta{
		IP:          sess.IPAddress,
		UserAgent:   sess.UserAgent,
		Fingerprint: sess.Fingerprint,
	})
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	// A concurrent loser may have run containment before the new row
	// existed; its marker tells us to revoke what we just created.
	if e.revocation.IsBlacklisted(wctx, reuseMarker(hash)) {
		return nil, e.reuseDetected(wctx, userID, pair.SessionID, hash, "rotation_race")
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventTokenRefresh, true, userID, pair.SessionID, nil, func() map[string]string {
		return map[string]string{"previous_session_id": sess.ID}
	})

	return pair, nil
}

// checkFingerprint compares the refreshing client with the one the session
// was opened from. A significant change is reported, never enforced.
func (e *Engine) checkFingerprint(ctx context.Context, sess *session.Session) {
	current := fingerprint.Context{
		UserAgent: userAgentFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	}
	if current.UserAgent == "" && current.IP == "" {
		return
	}
	original := fingerprint.Context{UserAgent: sess.UserAgent, IP: sess.IPAddress}
	if !fingerprint.SignificantChange(original, current) {
		return
	}

	e.metricInc(MetricSuspiciousFingerprint)
	e.logger.Warn("significant client change on refresh",
		zap.String("user_id", sess.UserID),
		zap.String("session_id", sess.ID),
		zap.String("original_network", fingerprint.NetworkPrefix(original.IP)),
		zap.String("current_network", fingerprint.NetworkPrefix(current.IP)),
		zap.String("original_family", fingerprint.Family(original.UserAgent)),
		zap.String("current_family", fingerprint.Family(current.UserAgent)),
	)
	e.emitAudit(ctx, auditEventSuspiciousFingerprint, true, sess.UserID, sess.ID, nil, func() map[string]string {
		return map[string]string{
			"original_fingerprint": sess.Fingerprint,
			"current_fingerprint":  current.Of(),
			"original_family":      fingerprint.Family(original.UserAgent),
			"current_family":       fingerprint.Family(current.UserAgent),
		}
	})
}

// reuseDetected revokes every session of userID, records the event and
// returns [ErrTokenReuseDetected]. It is never skipped: the revocation runs
// detached from the request context.
func (e *Engine) reuseDetected(ctx context.Context, userID, sessionID, tokenHash, reason string) error {
	wctx := context.WithoutCancel(ctx)

	// The marker must land before revoke-all; see the check at the end of Refresh.
	if err := e.revocation.Blacklist(wctx, reuseMarker(tokenHash), e.config.JWT.RefreshTTL); err != nil {
		e.logger.Warn("reuse marker write failed", zap.String("token_hash", shortHash(tokenHash)), zap.Error(err))
	}

	revoked, err := e.revokeAll(wctx, userID)
	if err != nil {
		e.logger.Error("reuse containment revoke-all failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	e.metricInc(MetricRefreshReuseDetected)
	e.logger.Warn("refresh token reuse detected",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("token_hash", shortHash(tokenHash)),
		zap.String("reason", reason),
		zap.Int("revoked_sessions", revoked),
	)
	e.emitAudit(wctx, auditEventTokenReuseDetected, false, userID, sessionID, ErrTokenReuseDetected, func() map[string]string {
		return map[string]string{
			"reason":           reason,
			"token_hash":       shortHash(tokenHash),
			"revoked_sessions": strconv.Itoa(revoked),
		}
	})

	return ErrTokenReuseDetected
}

func reuseMarker(tokenHash string) string {
	return "reuse." + tokenHash
}

func pastExpiry(claims *jwt.Claims, now time.Time) bool {
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}
