//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/password"
	"github.com/MrEthical07/tokenguard/postgres"
	"github.com/MrEthical07/tokenguard/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const testPassword = "integration-password-1"

// redisMode describes which Redis backend a suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes always includes miniredis. A real server is added when
// REDIS_ADDR is set; its test DB is flushed before and after.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}

	return modes
}

// postgresPool connects to TOKENGUARD_TEST_POSTGRES_DSN, migrates, and
// truncates both tables. The test is skipped when the variable is unset.
func postgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TOKENGUARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TOKENGUARD_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE tg_sessions, tg_users"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func testConfig() tokenguard.Config {
	cfg := tokenguard.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("integration-access-secret-0123456789abcd")
	cfg.JWT.RefreshSecret = []byte("integration-refresh-secret-0123456789abc")
	cfg.Audit.Enabled = false
	return cfg
}

func seedHash(t *testing.T) string {
	t.Helper()
	hasher, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

// newEngine builds an engine on rdb. sessions may be nil to use the Redis
// session store.
func newEngine(t *testing.T, rdb redis.UniversalClient, users tokenguard.UserStore, sessions session.Store) *tokenguard.Engine {
	t.Helper()

	hasher, _ := password.NewBcrypt(4)
	b := tokenguard.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserStore(users).
		WithPasswordHasher(hasher)
	if sessions != nil {
		b = b.WithSessionStore(sessions)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func memoryUsers(t *testing.T) *tokenguard.MemoryUserStore {
	t.Helper()
	users := tokenguard.NewMemoryUserStore()
	users.Put(tokenguard.UserRecord{ID: "u-1", Email: "one@example.com", Role: "member", PasswordHash: seedHash(t), Active: true})
	return users
}

func clientCtx() context.Context {
	ctx := tokenguard.WithClientIP(context.Background(), "198.51.100.4")
	return tokenguard.WithUserAgent(ctx, "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 Version/17.5 Safari/605.1.15")
}
