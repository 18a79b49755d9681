package tokenguard

import internalmetrics "github.com/MrEthical07/tokenguard/internal/metrics"

// MetricID identifies a counter or histogram in [MetricsSnapshot].
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess          = internalmetrics.MetricLoginSuccess
	MetricLoginFailure          = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited      = internalmetrics.MetricLoginRateLimited
	MetricAccountLocked         = internalmetrics.MetricAccountLocked
	MetricAccountUnlocked       = internalmetrics.MetricAccountUnlocked
	MetricRefreshSuccess        = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure        = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected  = internalmetrics.MetricRefreshReuseDetected
	MetricSuspiciousFingerprint = internalmetrics.MetricSuspiciousFingerprint
	MetricSessionCreated        = internalmetrics.MetricSessionCreated
	MetricSessionRevoked        = internalmetrics.MetricSessionRevoked
	MetricLogout                = internalmetrics.MetricLogout
	MetricLogoutAll             = internalmetrics.MetricLogoutAll
	MetricValidateRevoked       = internalmetrics.MetricValidateRevoked
	MetricRevocationCacheError  = internalmetrics.MetricRevocationCacheError
	MetricAuditDropped          = internalmetrics.MetricAuditDropped
	MetricValidateLatency       = internalmetrics.MetricValidateLatency
	MetricRefreshLatency        = internalmetrics.MetricRefreshLatency
)

// HistogramBucketCount is the number of latency buckets per histogram.
// Bucket upper bounds are 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, +Inf.
const HistogramBucketCount = internalmetrics.HistogramBucketCount

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false,
// all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

// IsHistogram reports whether id is exported as a histogram.
func IsHistogram(id MetricID) bool {
	return internalmetrics.IsHistogram(id)
}
