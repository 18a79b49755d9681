package tokenguard

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/tokenguard/internal/audit"
	"github.com/MrEthical07/tokenguard/internal/lockout"
	"github.com/MrEthical07/tokenguard/internal/rate"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/password"
	"github.com/MrEthical07/tokenguard/revocation"
	"github.com/MrEthical07/tokenguard/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Configure it during initialization and call
// [Builder.Build] once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessions   session.Store
	revocation revocation.Cache
	users      UserStore
	hasher     PasswordHasher
	auditSink  AuditSink
	logger     *zap.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the shared Redis deployment. Unless overridden, it
// backs the session store, the revocation cache and the login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the session store, e.g. with the Postgres store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

func (b *Builder) WithRevocationCache(cache revocation.Cache) *Builder {
	b.revocation = cache
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithPasswordHasher overrides the default Argon2id/bcrypt hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every engine and token timestamp.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
//
// Build fails when no session store or revocation cache can be derived, when
// the IP throttle is enabled without Redis, or when no user store is set.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.redis == nil {
		if b.sessions == nil {
			return nil, errors.New("session store required: supply WithRedis or WithSessionStore")
		}
		if b.revocation == nil {
			return nil, errors.New("revocation cache required: supply WithRedis or WithRevocationCache")
		}
		if cfg.RateLimit.EnableIPThrottle {
			return nil, errors.New("RateLimit EnableIPThrottle requires redis client")
		}
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		now:     now,
		users:   b.users,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- TOKENS --------
	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Leeway:        cfg.JWT.Leeway,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.issuer = issuer

	// -------- STORES --------
	engine.sessions = b.sessions
	if engine.sessions == nil {
		engine.sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}
	engine.revocation = b.revocation
	if engine.revocation == nil {
		engine.revocation = revocation.NewRedisCache(
			b.redis,
			cfg.Revocation.RedisPrefix,
			revocation.WithLogger(logger),
			revocation.WithErrorHook(func(error) {
				engine.metrics.Inc(MetricRevocationCacheError)
			}),
		)
	}
	if cfg.RateLimit.EnableIPThrottle {
		engine.limiter = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.RateLimit.MaxLoginAttempts,
			Window:      cfg.RateLimit.Window,
			Prefix:      cfg.RateLimit.RedisPrefix,
		})
	}

	// -------- LOCKOUT --------
	guard, err := lockout.New(lockout.Policy{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		ResetWindow:     cfg.Lockout.ResetWindow,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	})
	if err != nil {
		return nil, err
	}
	engine.guard = guard

	// -------- PASSWORDS --------
	engine.hasher = b.hasher
	if engine.hasher == nil {
		auto, err := password.NewAuto(password.DefaultConfig(), 0)
		if err != nil {
			return nil, err
		}
		engine.hasher = auto
	}
	if h, ok := engine.hasher.(interface{ Hash(string) (string, error) }); ok {
		// Unknown-email logins verify against this so they cost the same as
		// a wrong password.
		if dummy, err := h.Hash("tokenguard-timing-equalizer"); err == nil {
			engine.dummyHash = dummy
		}
	}

	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewZapSink(logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink, logger)

	b.built = true

	return engine, nil
}
