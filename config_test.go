package tokenguard

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard/revocation"
	"github.com/MrEthical07/tokenguard/session"
)

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without secrets must not validate")
	}

	cfg = testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected default TTLs %v/%v", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.LockoutDuration != 15*time.Minute {
		t.Fatalf("unexpected default lockout %+v", cfg.Lockout)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short access secret", func(c *Config) { c.JWT.AccessSecret = []byte("short") }, "AccessSecret"},
		{"short refresh secret", func(c *Config) { c.JWT.RefreshSecret = []byte("short") }, "RefreshSecret"},
		{"shared secret", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }, "must differ"},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }, "RefreshTTL must be >="},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -time.Second }, "Leeway"},
		{"huge leeway", func(c *Config) { c.JWT.Leeway = time.Hour }, "Leeway"},
		{"negative grace", func(c *Config) { c.Revocation.GracePeriod = -time.Second }, "GracePeriod"},
		{"grace outlives access", func(c *Config) { c.Revocation.GracePeriod = time.Hour }, "GracePeriod"},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }, "MaxAttempts"},
		{"zero lockout duration", func(c *Config) { c.Lockout.LockoutDuration = 0 }, "LockoutDuration"},
		{"throttle without attempts", func(c *Config) {
			c.RateLimit.EnableIPThrottle = true
			c.RateLimit.MaxLoginAttempts = 0
		}, "MaxLoginAttempts"},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestBuilderRequirements(t *testing.T) {
	users := NewMemoryUserStore()

	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without user store")
	}
	if _, err := New().WithConfig(testConfig()).WithUserStore(users).Build(); err == nil {
		t.Fatal("expected error without session store or redis")
	}
	if _, err := New().WithConfig(testConfig()).
		WithUserStore(users).
		WithSessionStore(session.NewMemoryStore(nil)).
		Build(); err == nil {
		t.Fatal("expected error without revocation cache or redis")
	}

	cfg := testConfig()
	cfg.RateLimit.EnableIPThrottle = true
	if _, err := New().WithConfig(cfg).
		WithUserStore(users).
		WithSessionStore(session.NewMemoryStore(nil)).
		WithRevocationCache(revocation.NewMemoryCache(nil)).
		Build(); err == nil {
		t.Fatal("expected error for IP throttle without redis")
	}

	b := New().WithConfig(testConfig()).
		WithUserStore(users).
		WithPasswordHasher(newTestHasher(t)).
		WithSessionStore(session.NewMemoryStore(nil)).
		WithRevocationCache(revocation.NewMemoryCache(nil))
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must not be reusable")
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'

	if b.config.JWT.AccessSecret[0] == 'X' {
		t.Fatal("builder must not alias caller-owned secrets")
	}
}

func TestMetricsCountLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := t.Context()

	pair := mustLogin(t, env.engine, ctx, "alice@example.com")
	_, _ = env.engine.Login(ctx, "alice@example.com", "wrong-password")
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricLoginSuccess:   1,
		MetricLoginFailure:   1,
		MetricRefreshSuccess: 1,
		MetricSessionCreated: 2,
	}
	for id, n := range want {
		if snap.Counters[id] != n {
			t.Fatalf("metric %d: got %d want %d", id, snap.Counters[id], n)
		}
	}
	if _, ok := snap.Counters[MetricAuditDropped]; !ok {
		t.Fatal("snapshot must report audit drops")
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	env := newTestEnv(t, cfg, nil)

	mustLogin(t, env.engine, t.Context(), "alice@example.com")
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 0 {
		t.Fatalf("disabled metrics must stay zero, got %d", got)
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	report := env.engine.SecurityReport()
	if report.AccessTTL != 15*time.Minute || report.LockoutThreshold != 5 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.AuditActive || report.IPThrottleActive {
		t.Fatalf("test config has audit and throttle off: %+v", report)
	}
	if len(report.Warnings) == 0 {
		t.Fatal("expected warnings for disabled throttle and audit")
	}
	if (*Engine)(nil).SecurityReport().AccessTTL != 0 {
		t.Fatal("nil engine must return a zero report")
	}
}
