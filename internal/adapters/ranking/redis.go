package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

const (
	defaultKeyPrefix   = "podium"
	defaultDialTimeout = 500 * time.Millisecond
	defaultOpTimeout   = 300 * time.Millisecond
	defaultCooldown    = 5 * time.Second
)

// RedisStore is the fast store on Redis sorted sets.
//
// The connection is created lazily. After a failed call the store is marked
// down and stays down for the retry cooldown; the first request after the
// cooldown probes the server once with PING while concurrent requests keep
// seeing it as unavailable.
type RedisStore struct {
	opts        *redis.Options
	prefix      string
	dialTimeout time.Duration
	cooldown    time.Duration
	logger      logger.Logger
	now         func() time.Time

	mu        sync.Mutex
	client    *redis.Client
	healthy   bool
	probing   bool
	closed    bool
	downUntil time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a store for addr. No connection is made until the
// first call.
func NewRedisStore(addr string, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		opts: &redis.Options{
			Addr:         addr,
			DialTimeout:  defaultDialTimeout,
			ReadTimeout:  defaultOpTimeout,
			WriteTimeout: defaultOpTimeout,
			PoolTimeout:  defaultOpTimeout,
			MaxRetries:   -1,
		},
		prefix:      defaultKeyPrefix,
		dialTimeout: defaultDialTimeout,
		cooldown:    defaultCooldown,
		logger:      logger.GetOrNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("ranking")
	return s
}

func (s *RedisStore) dayKey(day string) string    { return s.prefix + ":daily:" + day }
func (s *RedisStore) profileKey(id string) string { return s.prefix + ":profile:" + id }
func (s *RedisStore) limitKey(key string, w int64) string {
	return s.prefix + ":rl:" + key + ":" + strconv.FormatInt(w, 10)
}

// conn returns a usable client or nil when the store is down.
func (s *RedisStore) conn(ctx context.Context) *redis.Client {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.client != nil && s.healthy {
		c := s.client
		s.mu.Unlock()
		return c
	}
	if s.probing || s.now().Before(s.downUntil) {
		s.mu.Unlock()
		return nil
	}
	if s.client == nil {
		s.client = redis.NewClient(s.opts)
	}
	c := s.client
	s.probing = true
	s.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	err := c.Ping(pingCtx).Err()
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.probing = false
	if err != nil {
		if ctx.Err() == nil {
			s.markDownLocked(ctx, "ping", err)
		}
		return nil
	}
	if !s.healthy {
		s.logger.Info(ctx, "fast store connected", logger.String("addr", s.opts.Addr))
	}
	s.healthy = true
	metrics.UpdateFastStoreAvailable(true)
	return c
}

func (s *RedisStore) markDownLocked(ctx context.Context, op string, err error) {
	if s.healthy || s.downUntil.IsZero() {
		s.logger.Warn(ctx, "fast store unavailable",
			logger.String("op", op),
			logger.Duration("cooldown", s.cooldown),
			logger.Error(fmt.Errorf("%w: %w", ErrUnavailable, err)))
	}
	s.healthy = false
	s.downUntil = s.now().Add(s.cooldown)
	metrics.UpdateFastStoreAvailable(false)
	metrics.RecordErrorByComponent("ranking", "unavailable")
}

// fail records a failed call and marks the store down unless err is a
// missing key or the caller's own context ended.
func (s *RedisStore) fail(ctx context.Context, op string, err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		metrics.RecordFastStoreOp(op, "ok")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordFastStoreOp(op, "cancelled")
		return true
	}
	metrics.RecordFastStoreOp(op, "error")
	s.mu.Lock()
	s.markDownLocked(ctx, op, err)
	s.mu.Unlock()
	return true
}

// UpsertIfBetter implements Ranker. ZADD GT, EXPIRE and ZREVRANK run in one
// MULTI so the returned rank reflects this write.
func (s *RedisStore) UpsertIfBetter(ctx context.Context, day, member string, value float64) (int64, bool) {
	c := s.conn(ctx)
	if c == nil {
		metrics.RecordFastStoreOp("upsert", "unavailable")
		return 0, false
	}
	key := s.dayKey(day)

	pipe := c.TxPipeline()
	pipe.ZAddArgs(ctx, key, redis.ZAddArgs{GT: true, Members: []redis.Z{{Score: value, Member: member}}})
	pipe.Expire(ctx, key, DayTTL)
	rank := pipe.ZRevRank(ctx, key, member)
	if _, err := pipe.Exec(ctx); s.fail(ctx, "upsert", err) {
		return 0, false
	}
	return rank.Val(), true
}

// TopN implements Ranker.
func (s *RedisStore) TopN(ctx context.Context, day string, n int) ([]Entry, bool) {
	if n <= 0 {
		return []Entry{}, true
	}
	c := s.conn(ctx)
	if c == nil {
		metrics.RecordFastStoreOp("top", "unavailable")
		return nil, false
	}
	zs, err := c.ZRevRangeWithScores(ctx, s.dayKey(day), 0, int64(n-1)).Result()
	if s.fail(ctx, "top", err) {
		return nil, false
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, newEntry(member, z.Score))
	}
	return out, true
}

// Cardinality implements Ranker.
func (s *RedisStore) Cardinality(ctx context.Context, day string) (int64, bool) {
	c := s.conn(ctx)
	if c == nil {
		return 0, false
	}
	n, err := c.ZCard(ctx, s.dayKey(day)).Result()
	if s.fail(ctx, "card", err) {
		return 0, false
	}
	return n, true
}

// Best implements Ranker.
func (s *RedisStore) Best(ctx context.Context, day, member string) (float64, bool, bool) {
	c := s.conn(ctx)
	if c == nil {
		return 0, false, false
	}
	v, err := c.ZScore(ctx, s.dayKey(day), member).Result()
	if s.fail(ctx, "score", err) {
		return 0, false, false
	}
	if errors.Is(err, redis.Nil) {
		return 0, false, true
	}
	return v, true, true
}

// Remove implements Ranker.
func (s *RedisStore) Remove(ctx context.Context, day, member string) bool {
	c := s.conn(ctx)
	if c == nil {
		return false
	}
	err := c.ZRem(ctx, s.dayKey(day), member).Err()
	return !s.fail(ctx, "remove", err)
}

// Allow implements Limiter. Windows are aligned to the Unix epoch and the
// counter key expires with its window.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, win time.Duration) bool {
	if limit <= 0 || win <= 0 {
		return true
	}
	c := s.conn(ctx)
	if c == nil {
		return true
	}
	k := s.limitKey(key, s.now().UnixNano()/int64(win))

	pipe := c.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, win)
	if _, err := pipe.Exec(ctx); s.fail(ctx, "ratelimit", err) {
		return true
	}
	return incr.Val() <= int64(limit)
}

// CacheProfile implements ProfileCache.
func (s *RedisStore) CacheProfile(ctx context.Context, p model.Profile, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	c := s.conn(ctx)
	if c == nil {
		return false
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return false
	}
	err = c.Set(ctx, s.profileKey(p.PlayerID), raw, ttl).Err()
	return !s.fail(ctx, "profile_set", err)
}

// CachedProfile implements ProfileCache.
func (s *RedisStore) CachedProfile(ctx context.Context, playerID string) (model.Profile, bool) {
	c := s.conn(ctx)
	if c == nil {
		return model.Profile{}, false
	}
	raw, err := c.Get(ctx, s.profileKey(playerID)).Bytes()
	if s.fail(ctx, "profile_get", err) || errors.Is(err, redis.Nil) {
		return model.Profile{}, false
	}
	var p model.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Profile{}, false
	}
	return p, true
}

// Available implements Store. It may trigger a reconnect attempt.
func (s *RedisStore) Available(ctx context.Context) bool {
	return s.conn(ctx) != nil
}

// Close releases the connection pool. The store is unusable afterwards.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.healthy = false
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
