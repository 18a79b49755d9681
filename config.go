package tokenguard

import (
	"bytes"
	"errors"
	"time"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and supply the two signing secrets.
type Config struct {
	JWT        JWTConfig
	Revocation RevocationConfig
	Session    SessionConfig
	Lockout    LockoutConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds token signing material and lifetimes. Access and refresh
// tokens are signed with separate HS256 secrets.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
	Issuer        string
	Audience      string
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the revocation cache. GracePeriod is the window
// during which a just-rotated refresh token's blacklist entry is suppressed.
type RevocationConfig struct {
	RedisPrefix string
	GracePeriod time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig mirrors the account lockout policy: MaxAttempts failures
// inside ResetWindow lock the account for LockoutDuration.
type LockoutConfig struct {
	MaxAttempts     int
	ResetWindow     time.Duration
	LockoutDuration time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig enables the per-IP login throttle. It requires Redis.
type RateLimitConfig struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	Window           time.Duration
	RedisPrefix      string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns production defaults without secrets.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     30 * time.Second,
			Issuer:     "tokenguard",
			Audience:   "tokenguard-api",
		},
		Revocation: RevocationConfig{
			RedisPrefix: "tg:rev",
			GracePeriod: 10 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "tg:sess",
		},
		Lockout: LockoutConfig{
			MaxAttempts:     5,
			ResetWindow:     30 * time.Minute,
			LockoutDuration: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle: false,
			MaxLoginAttempts: 20,
			Window:           time.Minute,
			RedisPrefix:      "tg",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

const minSecretBytes = 32

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < minSecretBytes {
		return errors.New("JWT AccessSecret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < minSecretBytes {
		return errors.New("JWT RefreshSecret must be at least 32 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Revocation
	if c.Revocation.GracePeriod < 0 {
		return errors.New("Revocation GracePeriod must be >= 0")
	}
	if c.Revocation.GracePeriod >= c.JWT.AccessTTL {
		return errors.New("Revocation GracePeriod must be shorter than JWT AccessTTL")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.ResetWindow <= 0 {
		return errors.New("Lockout ResetWindow must be > 0")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return errors.New("Lockout LockoutDuration must be > 0")
	}

	if c.RateLimit.EnableIPThrottle {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0 when IP throttle is enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0 when IP throttle is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
