package internaldefs

import (
	"github.com/MrEthical07/tokenguard"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   tokenguard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   tokenguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: tokenguard.MetricLoginSuccess, Name: "tokenguard_login_success_total", Help: "Successful logins."},
	{ID: tokenguard.MetricLoginFailure, Name: "tokenguard_login_failure_total", Help: "Failed logins, including locked and inactive accounts."},
	{ID: tokenguard.MetricLoginRateLimited, Name: "tokenguard_login_rate_limited_total", Help: "Logins denied by the per-IP throttle."},
	{ID: tokenguard.MetricAccountLocked, Name: "tokenguard_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: tokenguard.MetricAccountUnlocked, Name: "tokenguard_account_unlocked_total", Help: "Administrative unlocks."},
	{ID: tokenguard.MetricRefreshSuccess, Name: "tokenguard_refresh_success_total", Help: "Successful refresh-token rotations."},
	{ID: tokenguard.MetricRefreshFailure, Name: "tokenguard_refresh_failure_total", Help: "Refresh attempts rejected for invalid or expired tokens or store errors."},
	{ID: tokenguard.MetricRefreshReuseDetected, Name: "tokenguard_refresh_reuse_detected_total", Help: "Refresh-token reuse detections."},
	{ID: tokenguard.MetricSuspiciousFingerprint, Name: "tokenguard_suspicious_fingerprint_total", Help: "Refreshes from a significantly different client."},
	{ID: tokenguard.MetricSessionCreated, Name: "tokenguard_session_created_total", Help: "Session rows created."},
	{ID: tokenguard.MetricSessionRevoked, Name: "tokenguard_session_revoked_total", Help: "Session rows revoked outside rotation."},
	{ID: tokenguard.MetricLogout, Name: "tokenguard_logout_total", Help: "Single-session logouts."},
	{ID: tokenguard.MetricLogoutAll, Name: "tokenguard_logout_all_total", Help: "Revoke-all operations."},
	{ID: tokenguard.MetricValidateRevoked, Name: "tokenguard_validate_revoked_total", Help: "Access tokens rejected by the revocation cache."},
	{ID: tokenguard.MetricRevocationCacheError, Name: "tokenguard_revocation_cache_errors_total", Help: "Revocation cache backend failures."},
	{ID: tokenguard.MetricAuditDropped, Name: "tokenguard_audit_dropped_total", Help: "Audit events dropped due to dispatcher backpressure."},
}

var HistogramDefs = []HistogramDef{
	{ID: tokenguard.MetricValidateLatency, Name: "tokenguard_validate_latency_seconds", Help: "Access-token validation latency."},
	{ID: tokenguard.MetricRefreshLatency, Name: "tokenguard_refresh_latency_seconds", Help: "Refresh rotation latency."},
}

// HistogramBounds are the finite upper bounds in seconds; the last engine
// bucket is +Inf.
var HistogramBounds = [tokenguard.HistogramBucketCount - 1]float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
}

// HistogramBoundSuffix names each bucket for exporters without native
// histogram support.
var HistogramBoundSuffix = [tokenguard.HistogramBucketCount]string{
	"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling short input.
func NormalizeBuckets(raw []uint64) [tokenguard.HistogramBucketCount]uint64 {
	var out [tokenguard.HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals; the last
// element is the sample count.
func CumulativeBuckets(raw [tokenguard.HistogramBucketCount]uint64) [tokenguard.HistogramBucketCount]uint64 {
	var out [tokenguard.HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
