// Package appconfig loads process configuration for the tokenguard binary:
// defaults, then an optional YAML file, then environment overrides.
//
// Token secrets are read from ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET
// only; the YAML file has no field for them.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/tokenguard"
	"gopkg.in/yaml.v3"
)

const (
	EnvAccessSecret  = "ACCESS_TOKEN_SECRET"
	EnvRefreshSecret = "REFRESH_TOKEN_SECRET"
)

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Auth     AuthConfig     `yaml:"auth"`

	AccessSecret  string `yaml:"-"`
	RefreshSecret string `yaml:"-"`
}

// HTTPConfig configures the public API listener. MetricsAddr is a separate
// listener for /metrics; empty disables it.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// PostgresConfig enables the durable user store. SessionsInPostgres moves
// session rows there too; otherwise they live in Redis.
type PostgresConfig struct {
	DSN                string `yaml:"dsn"`
	SessionsInPostgres bool   `yaml:"sessions_in_postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SweeperConfig struct {
	Schedule string        `yaml:"schedule"`
	Grace    time.Duration `yaml:"grace"`
}

// SweepGrace is how long the sweeper keeps a row past its expiry. It never
// drops below the JWT leeway, while the issuer still accepts the token.
func (c Config) SweepGrace() time.Duration {
	return max(c.Sweeper.Grace, c.Auth.Leeway)
}

type AuthConfig struct {
	AccessTTL        time.Duration `yaml:"access_ttl"`
	RefreshTTL       time.Duration `yaml:"refresh_ttl"`
	Leeway           time.Duration `yaml:"leeway"`
	Issuer           string        `yaml:"issuer"`
	Audience         string        `yaml:"audience"`
	GracePeriod      time.Duration `yaml:"grace_period"`
	LockoutAttempts  int           `yaml:"lockout_attempts"`
	LockoutWindow    time.Duration `yaml:"lockout_window"`
	LockoutDuration  time.Duration `yaml:"lockout_duration"`
	IPThrottle       bool          `yaml:"ip_throttle"`
	IPThrottleMax    int           `yaml:"ip_throttle_max"`
	IPThrottleWindow time.Duration `yaml:"ip_throttle_window"`
	AuditEnabled     bool          `yaml:"audit_enabled"`
	AuditBuffer      int           `yaml:"audit_buffer"`
	LatencyMetrics   bool          `yaml:"latency_metrics"`
}

func Default() Config {
	lib := tokenguard.DefaultConfig()
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			MetricsAddr:     "127.0.0.1:9090",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Topic: "tokenguard.audit",
		},
		Sweeper: SweeperConfig{
			Schedule: "@every 10m",
		},
		Auth: AuthConfig{
			AccessTTL:        lib.JWT.AccessTTL,
			RefreshTTL:       lib.JWT.RefreshTTL,
			Leeway:           lib.JWT.Leeway,
			Issuer:           lib.JWT.Issuer,
			Audience:         lib.JWT.Audience,
			GracePeriod:      lib.Revocation.GracePeriod,
			LockoutAttempts:  lib.Lockout.MaxAttempts,
			LockoutWindow:    lib.Lockout.ResetWindow,
			LockoutDuration:  lib.Lockout.LockoutDuration,
			IPThrottle:       lib.RateLimit.EnableIPThrottle,
			IPThrottleMax:    lib.RateLimit.MaxLoginAttempts,
			IPThrottleWindow: lib.RateLimit.Window,
			AuditEnabled:     lib.Audit.Enabled,
			AuditBuffer:      lib.Audit.BufferSize,
			LatencyMetrics:   true,
		},
	}
}

// Load reads path (a missing file is not an error) and the environment.
// It fails when either token secret is absent.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	cfg.AccessSecret = os.Getenv(EnvAccessSecret)
	cfg.RefreshSecret = os.Getenv(EnvRefreshSecret)
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("%s and %s must be set", EnvAccessSecret, EnvRefreshSecret)
	}

	return cfg, nil
}

// EngineConfig maps the process config onto the library config.
func (c Config) EngineConfig() tokenguard.Config {
	cfg := tokenguard.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshSecret)
	cfg.JWT.AccessTTL = c.Auth.AccessTTL
	cfg.JWT.RefreshTTL = c.Auth.RefreshTTL
	cfg.JWT.Leeway = c.Auth.Leeway
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.Audience = c.Auth.Audience
	cfg.Revocation.GracePeriod = c.Auth.GracePeriod
	cfg.Lockout.MaxAttempts = c.Auth.LockoutAttempts
	cfg.Lockout.ResetWindow = c.Auth.LockoutWindow
	cfg.Lockout.LockoutDuration = c.Auth.LockoutDuration
	cfg.RateLimit.EnableIPThrottle = c.Auth.IPThrottle
	cfg.RateLimit.MaxLoginAttempts = c.Auth.IPThrottleMax
	cfg.RateLimit.Window = c.Auth.IPThrottleWindow
	cfg.Audit.Enabled = c.Auth.AuditEnabled
	cfg.Audit.BufferSize = c.Auth.AuditBuffer
	cfg.Metrics.EnableLatencyHistograms = c.Auth.LatencyMetrics
	return cfg
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		if v == "off" {
			v = ""
		}
		cfg.HTTP.MetricsAddr = v
	}
	if err := overrideDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if err := overrideBool("POSTGRES_SESSIONS", &cfg.Postgres.SessionsInPostgres); err != nil {
		return err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_AUDIT_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}

	if v := os.Getenv("SWEEP_SCHEDULE"); v != "" {
		cfg.Sweeper.Schedule = v
	}

	if err := overrideDuration("ACCESS_TOKEN_TTL", &cfg.Auth.AccessTTL); err != nil {
		return err
	}
	if err := overrideDuration("REFRESH_TOKEN_TTL", &cfg.Auth.RefreshTTL); err != nil {
		return err
	}
	if err := overrideDuration("REVOCATION_GRACE", &cfg.Auth.GracePeriod); err != nil {
		return err
	}
	if err := overrideInt("LOCKOUT_ATTEMPTS", &cfg.Auth.LockoutAttempts); err != nil {
		return err
	}
	if err := overrideDuration("LOCKOUT_DURATION", &cfg.Auth.LockoutDuration); err != nil {
		return err
	}
	if err := overrideBool("IP_THROTTLE", &cfg.Auth.IPThrottle); err != nil {
		return err
	}
	if err := overrideBool("AUDIT_ENABLED", &cfg.Auth.AuditEnabled); err != nil {
		return err
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}
