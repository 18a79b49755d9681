package tokenguard

import "github.com/MrEthical07/tokenguard/internal/security"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport] and [SecurityReportFor].
type SecurityReport = security.Report

// SecurityReportFor computes the report for cfg without building an engine.
func SecurityReportFor(cfg Config) SecurityReport {
	return security.Build(security.Input{
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		Leeway:           cfg.JWT.Leeway,
		Issuer:           cfg.JWT.Issuer,
		Audience:         cfg.JWT.Audience,
		GracePeriod:      cfg.Revocation.GracePeriod,
		LockoutAttempts:  cfg.Lockout.MaxAttempts,
		LockoutDuration:  cfg.Lockout.LockoutDuration,
		IPThrottle:       cfg.RateLimit.EnableIPThrottle,
		AuditEnabled:     cfg.Audit.Enabled,
		AuditDropIfFull:  cfg.Audit.DropIfFull,
		LatencyHistogram: cfg.Metrics.Enabled && cfg.Metrics.EnableLatencyHistograms,
	})
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return SecurityReportFor(e.config)
}
