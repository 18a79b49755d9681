package tokenguard

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/tokenguard/internal/audit"
	"github.com/MrEthical07/tokenguard/internal/lockout"
	"github.com/MrEthical07/tokenguard/internal/rate"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/revocation"
	"github.com/MrEthical07/tokenguard/session"
	"go.uber.org/zap"
)

// Engine runs the token lifecycle: login, rotation on refresh, reuse
// detection, revocation and account lockout.
//
// Engine holds no per-user state and no locks; every shared fact lives in
// the session store, the revocation cache or the user store. Methods are
// safe for concurrent use.
type Engine struct {
	config     Config
	issuer     *jwt.Issuer
	sessions   session.Store
	revocation revocation.Cache
	users      UserStore
	hasher     PasswordHasher
	dummyHash  string
	guard      *lockout.Guard
	limiter    *rate.Limiter
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	snap := e.metrics.Snapshot()
	if e.metrics.Enabled() {
		snap.Counters[MetricAuditDropped] = e.AuditDropped()
	}
	return snap
}

// AccessTTL and RefreshTTL expose the configured lifetimes to transports
// that set cookie Max-Age.
func (e *Engine) AccessTTL() time.Duration { return e.config.JWT.AccessTTL }

func (e *Engine) RefreshTTL() time.Duration { return e.config.JWT.RefreshTTL }

// ValidateAccess verifies an access token's signature and expiry and then
// consults the revocation cache.
//
//	Performance: no store access; one revocation-cache round-trip.
//	Security: a cache outage fails open, so a revoked token may validate
//	until its expiry while the cache is unreachable.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if accessToken == "" {
		return nil, ErrTokenMissing
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := e.issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, tokenError(err)
	}
	if e.revocation.IsBlacklisted(ctx, jwt.Hash(accessToken)) {
		e.metricInc(MetricValidateRevoked)
		return nil, ErrTokenRevoked
	}

	result := &AuthResult{
		UserID:    claims.UserID(),
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// ListActiveSessions returns the user's non-revoked, unexpired sessions,
// newest first.
func (e *Engine) ListActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	rows, err := e.sessions.ListActive(ctx, userID, e.now())
	if err != nil {
		return nil, e.internalError("list active sessions", err, zap.String("user_id", userID))
	}

	out := make([]SessionInfo, 0, len(rows))
	for _, s := range rows {
		out = append(out, SessionInfo{
			ID:        s.ID,
			IssuedAt:  s.IssuedAt,
			ExpiresAt: s.ExpiresAt,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
		})
	}
	return out, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// internalError logs the full cause and returns the opaque [ErrInternal].
func (e *Engine) internalError(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	e.logger.Error(op+" failed", fields...)
	return ErrInternal
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

// shortHash is the only form of a token hash written to logs.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
