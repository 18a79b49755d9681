package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markStatusNotFound int64 = 0
	markStatusRevoked  int64 = 1
	markStatusFlipped  int64 = 2
)

// KEYS[1] is the hash index, KEYS[2] the row it pointed at when read.
const markRevokedScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
if redis.call("EXISTS", KEYS[2]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[2], "revoked") == "1" then
  return 1
end
redis.call("HSET", KEYS[2], "revoked", "1", "revoked_at", ARGV[2])
return 2
`

var markRevokedLua = redis.NewScript(markRevokedScript)

// KEYS are row keys, ARGV[1] the revocation time and ARGV[i+1] the id of
// KEYS[i].
const markAllRevokedScript = `
local flipped = {}
for i, key in ipairs(KEYS) do
  if redis.call("EXISTS", key) == 1 and redis.call("HGET", key, "revoked") ~= "1" then
    redis.call("HSET", key, "revoked", "1", "revoked_at", ARGV[1])
    table.insert(flipped, ARGV[i + 1])
  end
end
return flipped
`

var markAllRevokedLua = redis.NewScript(markAllRevokedScript)

// RedisStore is a [Store] backed by Redis.
//
// Layout: {<prefix>}:s:<id> is a hash holding the row, {<prefix>}:h:<tokenHash>
// maps a refresh-token hash to its session id, {<prefix>}:u:<userID> is a
// sorted set of session ids scored by issue time and {<prefix>}:exp is a
// sorted set of every session id scored by expiry, read by the sweeper.
//
// The braces are a Redis Cluster hash tag: every key lives in one slot, so
// the scripts and MULTI blocks below also run on a cluster.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a [RedisStore]. prefix namespaces every key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tg"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) tag() string { return "{" + s.prefix + "}" }

func (s *RedisStore) sessionKey(id string) string { return s.tag() + ":s:" + id }

func (s *RedisStore) hashKey(tokenHash string) string { return s.tag() + ":h:" + tokenHash }

func (s *RedisStore) userKey(userID string) string { return s.tag() + ":u:" + userID }

func (s *RedisStore) expiryKey() string { return s.tag() + ":exp" }

// Create implements [Store].
//
//	Performance: one MULTI/EXEC round-trip.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(sess.ID), encodeFields(sess))
		pipe.Set(ctx, s.hashKey(sess.TokenHash), sess.ID, 0)
		pipe.ZAdd(ctx, s.userKey(sess.UserID), redis.Z{Score: float64(sess.IssuedAt.UnixMilli()), Member: sess.ID})
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{Score: float64(sess.ExpiresAt.UnixMilli()), Member: sess.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FindByTokenHash implements [Store].
func (s *RedisStore) FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	id, err := s.redis.Get(ctx, s.hashKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.FindByID(ctx, id)
}

// FindByID implements [Store].
func (s *RedisStore) FindByID(ctx context.Context, id string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeFields(fields)
}

// MarkRevoked implements [Store] with a Lua compare-and-set.
//
//	Performance: 1 GET + 1 EVALSHA.
//	Security: concurrent callers for the same hash see exactly one success.
func (s *RedisStore) MarkRevoked(ctx context.Context, tokenHash string) error {
	id, err := s.redis.Get(ctx, s.hashKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	code, err := markRevokedLua.Run(
		ctx,
		s.redis,
		[]string{s.hashKey(tokenHash), s.sessionKey(id)},
		id,
		s.now().UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case markStatusFlipped:
		return nil
	case markStatusRevoked:
		return ErrAlreadyRevoked
	case markStatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unknown revoke script status %d", ErrRedisUnavailable, code)
	}
}

// MarkAllRevokedForUser implements [Store]. The flip over the rows listed in
// the user index is atomic; a row created after the index was read is not
// part of it.
func (s *RedisStore) MarkAllRevokedForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	keys := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, s.now().UnixMilli())
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
		args = append(args, id)
	}

	flipped, err := markAllRevokedLua.Run(ctx, s.redis, keys, args...).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.loadMany(ctx, flipped)
}

// ListActive implements [Store].
func (s *RedisStore) ListActive(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	all, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(all))
	for _, sess := range all {
		if sess.Active(now) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// DeleteExpired implements [Store].
func (s *RedisStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	sessions, err := s.loadMany(ctx, ids)
	if err != nil {
		return 0, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sess := range sessions {
			pipe.Del(ctx, s.sessionKey(sess.ID), s.hashKey(sess.TokenHash))
			pipe.ZRem(ctx, s.userKey(sess.UserID), sess.ID)
		}
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.ZRem(ctx, s.expiryKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int64(len(sessions)), nil
}

// loadMany fetches rows in id order, skipping ids whose hash is gone.
func (s *RedisStore) loadMany(ctx context.Context, ids []string) ([]*Session, error) {
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Session, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(fields) == 0 {
			continue
		}
		sess, err := decodeFields(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func encodeFields(sess *Session) map[string]interface{} {
	revoked := "0"
	if sess.IsRevoked {
		revoked = "1"
	}
	return map[string]interface{}{
		"id":                sess.ID,
		"user_id":           sess.UserID,
		"token_hash":        sess.TokenHash,
		"access_hash":       sess.AccessTokenHash,
		"access_expires_at": millis(sess.AccessExpiresAt),
		"issued_at":         millis(sess.IssuedAt),
		"expires_at":        millis(sess.ExpiresAt),
		"revoked":           revoked,
		"revoked_at":        millis(sess.RevokedAt),
		"ip":                sess.IPAddress,
		"ua":                sess.UserAgent,
		"fp":                sess.Fingerprint,
	}
}

func decodeFields(f map[string]string) (*Session, error) {
	sess := &Session{
		ID:              f["id"],
		UserID:          f["user_id"],
		TokenHash:       f["token_hash"],
		AccessTokenHash: f["access_hash"],
		IsRevoked:       f["revoked"] == "1",
		IPAddress:       f["ip"],
		UserAgent:       f["ua"],
		Fingerprint:     f["fp"],
	}
	if sess.ID == "" || sess.UserID == "" {
		return nil, errors.New("session record corrupt")
	}

	var err error
	if sess.IssuedAt, err = parseMillis(f["issued_at"]); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseMillis(f["expires_at"]); err != nil {
		return nil, err
	}
	if sess.AccessExpiresAt, err = parseMillis(f["access_expires_at"]); err != nil {
		return nil, err
	}
	if sess.RevokedAt, err = parseMillis(f["revoked_at"]); err != nil {
		return nil, err
	}
	return sess, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func parseMillis(v string) (time.Time, error) {
	if v == "" || v == "0" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session record corrupt: %w", err)
	}
	return time.UnixMilli(n), nil
}
