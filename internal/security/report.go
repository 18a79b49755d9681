package security

import (
	"fmt"
	"time"
)

// Input is the subset of engine settings the report is computed from.
type Input struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Leeway           time.Duration
	Issuer           string
	Audience         string
	GracePeriod      time.Duration
	LockoutAttempts  int
	LockoutDuration  time.Duration
	IPThrottle       bool
	AuditEnabled     bool
	AuditDropIfFull  bool
	LatencyHistogram bool
}

type Report struct {
	SigningAlgorithm       string        `yaml:"signing_algorithm"`
	AccessTTL              time.Duration `yaml:"access_ttl"`
	RefreshTTL             time.Duration `yaml:"refresh_ttl"`
	GracePeriod            time.Duration `yaml:"grace_period"`
	AudienceChecked        bool          `yaml:"audience_checked"`
	LockoutThreshold       int           `yaml:"lockout_threshold"`
	LockoutDuration        time.Duration `yaml:"lockout_duration"`
	IPThrottleActive       bool          `yaml:"ip_throttle_active"`
	AuditActive            bool          `yaml:"audit_active"`
	AuditLossless          bool          `yaml:"audit_lossless"`
	RefreshReuseDetection  bool          `yaml:"refresh_reuse_detection"`
	LatencyMetricsRecorded bool          `yaml:"latency_metrics_recorded"`
	Warnings               []string      `yaml:"warnings,omitempty"`
}

const (
	maxRecommendedAccessTTL = time.Hour
	maxRecommendedGrace     = 30 * time.Second
	maxRecommendedLeeway    = time.Minute
)

// Build computes the report. Warnings list settings that are valid but
// weaker than the shipped defaults.
func Build(in Input) Report {
	r := Report{
		SigningAlgorithm:       "HS256",
		AccessTTL:              in.AccessTTL,
		RefreshTTL:             in.RefreshTTL,
		GracePeriod:            in.GracePeriod,
		AudienceChecked:        in.Audience != "",
		LockoutThreshold:       in.LockoutAttempts,
		LockoutDuration:        in.LockoutDuration,
		IPThrottleActive:       in.IPThrottle,
		AuditActive:            in.AuditEnabled,
		AuditLossless:          in.AuditEnabled && !in.AuditDropIfFull,
		RefreshReuseDetection:  true,
		LatencyMetricsRecorded: in.LatencyHistogram,
	}

	if in.AccessTTL > maxRecommendedAccessTTL {
		r.Warnings = append(r.Warnings, fmt.Sprintf("access tokens live %s; revoked sessions stay usable without the cache for that long", in.AccessTTL))
	}
	if in.GracePeriod > maxRecommendedGrace {
		r.Warnings = append(r.Warnings, fmt.Sprintf("grace period %s exceeds %s", in.GracePeriod, maxRecommendedGrace))
	}
	if in.Leeway > maxRecommendedLeeway {
		r.Warnings = append(r.Warnings, fmt.Sprintf("clock leeway %s exceeds %s", in.Leeway, maxRecommendedLeeway))
	}
	if in.Issuer == "" {
		r.Warnings = append(r.Warnings, "issuer claim is not checked")
	}
	if !in.IPThrottle {
		r.Warnings = append(r.Warnings, "per-IP login throttle disabled")
	}
	if !in.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit events disabled")
	}
	return r
}
