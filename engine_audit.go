package tokenguard

import (
	"context"
	"errors"
)

const (
	auditEventLogin                 = "LOGIN"
	auditEventLoginFailed           = "LOGIN_FAILED"
	auditEventTokenRefresh          = "TOKEN_REFRESH"
	auditEventTokenReuseDetected    = "TOKEN_REUSE_DETECTED"
	auditEventLogout                = "LOGOUT"
	auditEventSessionRevoked        = "SESSION_REVOKED"
	auditEventAllSessionsRevoked    = "ALL_SESSIONS_REVOKED"
	auditEventAccountLocked         = "ACCOUNT_LOCKED"
	auditEventAccountUnlocked       = "ACCOUNT_UNLOCKED"
	auditEventSuspiciousFingerprint = "SUSPICIOUS_FINGERPRINT"
)

// AuditErrorCode is the stable error string recorded in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrCredentialsInvalid AuditErrorCode = "credentials_invalid"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrTokenReuse         AuditErrorCode = "token_reuse_detected"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	e.emitAuditAs(ctx, "", eventType, success, userID, sessionID, err, metadataBuilder)
}

// emitAuditAs records an event performed by actor on behalf of userID.
// metadataBuilder runs only when auditing is enabled.
func (e *Engine) emitAuditAs(
	ctx context.Context,
	actor string,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		Actor:     actor,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCredentialsInvalid):
		return auditErrCredentialsInvalid
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrTokenReuse
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	default:
		return auditErrInternal
	}
}
