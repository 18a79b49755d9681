package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache is a [Cache] backed by a shared Redis deployment.
//
//	Performance: Blacklist* is one MULTI/EXEC round-trip, IsBlacklisted one pipelined round-trip.
type RedisCache struct {
	redis   redis.UniversalClient
	prefix  string
	logger  *zap.Logger
	onError func(error)
}

// Option customizes a [RedisCache].
type Option func(*RedisCache)

// WithLogger sets the logger used for fail-open reports.
func WithLogger(logger *zap.Logger) Option {
	return func(c *RedisCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHook registers a callback invoked on every backend failure,
// typically a metrics counter.
func WithErrorHook(fn func(error)) Option {
	return func(c *RedisCache) {
		c.onError = fn
	}
}

// NewRedisCache creates a [RedisCache]. prefix namespaces every key.
func NewRedisCache(client redis.UniversalClient, prefix string, opts ...Option) *RedisCache {
	if prefix == "" {
		prefix = "tg"
	}
	c := &RedisCache{
		redis:  client,
		prefix: prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Both markers of one hash share a cluster hash tag so that a single
// MULTI can write them.
func (c *RedisCache) blacklistKey(hash string) string {
	return c.prefix + ":{" + hash + "}:bl"
}

func (c *RedisCache) graceKey(hash string) string {
	return c.prefix + ":{" + hash + "}:gr"
}

// Blacklist implements [Cache].
func (c *RedisCache) Blacklist(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.blacklistKey(tokenHash), 1, ttl)
		pipe.Del(ctx, c.graceKey(tokenHash))
		return nil
	})
	if err != nil {
		c.report(err, tokenHash)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// BlacklistWithGrace implements [Cache].
func (c *RedisCache) BlacklistWithGrace(ctx context.Context, tokenHash string, ttl, grace time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	grace = clampGrace(ttl, grace)

	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.blacklistKey(tokenHash), 1, ttl)
		if grace > 0 {
			pipe.Set(ctx, c.graceKey(tokenHash), 1, grace)
		}
		return nil
	})
	if err != nil {
		c.report(err, tokenHash)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsBlacklisted implements [Cache]. It fails open.
func (c *RedisCache) IsBlacklisted(ctx context.Context, tokenHash string) bool {
	pipe := c.redis.Pipeline()
	graceCmd := pipe.Exists(ctx, c.graceKey(tokenHash))
	blCmd := pipe.Exists(ctx, c.blacklistKey(tokenHash))
	if _, err := pipe.Exec(ctx); err != nil {
		c.report(err, tokenHash)
		return false
	}

	if graceCmd.Val() > 0 {
		return false
	}
	return blCmd.Val() > 0
}

func (c *RedisCache) report(err error, tokenHash string) {
	c.logger.Error("revocation cache unavailable",
		zap.Error(err),
		zap.String("token_hash", shortHash(tokenHash)),
	)
	if c.onError != nil {
		c.onError(err)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
