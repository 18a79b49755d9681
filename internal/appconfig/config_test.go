package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"APP_ENV", "HTTP_ADDR", "METRICS_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "LOG_LEVEL",
	"POSTGRES_DSN", "POSTGRES_SESSIONS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"KAFKA_BROKERS", "KAFKA_AUDIT_TOPIC", "SWEEP_SCHEDULE",
	"ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "REVOCATION_GRACE", "LOCKOUT_ATTEMPTS",
	"LOCKOUT_DURATION", "IP_THROTTLE", "AUDIT_ENABLED",
	EnvAccessSecret, EnvRefreshSecret,
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAccessSecret, "access-secret-0123456789abcdef0123456789")
	t.Setenv(EnvRefreshSecret, "refresh-secret-0123456789abcdef012345678")
}

func TestLoadRequiresSecrets(t *testing.T) {
	clearConfigEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without secrets")
	}
}

func TestLoadDefaultsProduceValidEngineConfig(t *testing.T) {
	clearConfigEnv(t)
	setSecrets(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	engineCfg := cfg.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		t.Fatalf("default engine config invalid: %v", err)
	}
	if engineCfg.JWT.AccessTTL != 15*time.Minute || engineCfg.Lockout.MaxAttempts != 5 {
		t.Fatalf("unexpected engine defaults %+v", engineCfg.JWT)
	}
}

func TestLoadUsesYAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	setSecrets(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  addr: ":9090"
redis:
  addr: "redis:6379"
kafka:
  brokers: ["k1:9092"]
auth:
  access_ttl: 5m
  lockout_attempts: 3
  ip_throttle: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("LOCKOUT_ATTEMPTS", "7")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("yaml values not applied: %+v %+v", cfg.HTTP, cfg.Redis)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute || !cfg.Auth.IPThrottle {
		t.Fatalf("yaml auth values not applied: %+v", cfg.Auth)
	}
	if cfg.Auth.LockoutAttempts != 7 {
		t.Fatalf("env must override yaml, got %d", cfg.Auth.LockoutAttempts)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Sweeper.Schedule != "@every 10m" {
		t.Fatalf("default schedule lost: %q", cfg.Sweeper.Schedule)
	}
}

func TestLoadIgnoresSecretsInYAML(t *testing.T) {
	clearConfigEnv(t)
	setSecrets(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("accesssecret: from-file\n"), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AccessSecret == "from-file" {
		t.Fatal("secrets must come from the environment only")
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	clearConfigEnv(t)
	setSecrets(t)
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestSweepGraceNeverBelowLeeway(t *testing.T) {
	cfg := Default()
	cfg.Auth.Leeway = 30 * time.Second

	cfg.Sweeper.Grace = 0
	if got := cfg.SweepGrace(); got != 30*time.Second {
		t.Fatalf("expected leeway as sweep grace, got %v", got)
	}
	cfg.Sweeper.Grace = 5 * time.Minute
	if got := cfg.SweepGrace(); got != 5*time.Minute {
		t.Fatalf("expected configured sweep grace, got %v", got)
	}
}

func TestMetricsListenerIsInternalByDefault(t *testing.T) {
	clearConfigEnv(t)
	setSecrets(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.MetricsAddr != "127.0.0.1:9090" || cfg.HTTP.MetricsAddr == cfg.HTTP.Addr {
		t.Fatalf("unexpected metrics listener %q", cfg.HTTP.MetricsAddr)
	}

	t.Setenv("METRICS_ADDR", "off")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.MetricsAddr != "" {
		t.Fatalf("expected metrics listener disabled, got %q", cfg.HTTP.MetricsAddr)
	}
}
