package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/internal/appconfig"
	"github.com/MrEthical07/tokenguard/kafkasink"
	"github.com/MrEthical07/tokenguard/postgres"
	"github.com/MrEthical07/tokenguard/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app owns every external connection the engine is wired to.
type app struct {
	cfg      appconfig.Config
	log      *zap.Logger
	engine   *tokenguard.Engine
	sessions session.Store
	pool     *pgxpool.Pool
	redis    *redis.Client
	kafka    *kafkasink.Sink
}

func newApp(ctx context.Context, cfg appconfig.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	var users tokenguard.UserStore
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pool = pool
		users = postgres.NewUserStore(pool)
	} else {
		if cfg.Env != "dev" {
			a.Close()
			return nil, errors.New("postgres dsn required outside dev")
		}
		log.Warn("no postgres dsn, using an empty in-memory user store")
		users = tokenguard.NewMemoryUserStore()
	}

	if cfg.Postgres.SessionsInPostgres {
		if a.pool == nil {
			a.Close()
			return nil, errors.New("sessions_in_postgres requires a postgres dsn")
		}
		a.sessions = postgres.NewSessionStore(a.pool, nil)
	} else {
		a.sessions = session.NewRedisStore(a.redis, tokenguard.DefaultConfig().Session.RedisPrefix)
	}

	var sink tokenguard.AuditSink = tokenguard.NewZapSink(log)
	if len(cfg.Kafka.Brokers) > 0 {
		a.kafka = kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafkasink.WithLogger(log))
		sink = a.kafka
	}

	engine, err := tokenguard.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(a.redis).
		WithSessionStore(a.sessions).
		WithUserStore(users).
		WithAuditSink(sink).
		WithLogger(log).
		Build()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine

	return a, nil
}

// Close drains the audit queue before closing the connections it may use.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.log.Warn("kafka writer close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close failed", zap.Error(err))
		}
	}
}
