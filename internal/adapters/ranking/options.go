package ranking

import (
	"time"

	"github.com/okian/podium/pkg/logger"
)

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithPassword sets the Redis password.
func WithPassword(password string) RedisOption {
	return func(s *RedisStore) { s.opts.Password = password }
}

// WithDB selects the Redis logical database.
func WithDB(db int) RedisOption {
	return func(s *RedisStore) { s.opts.DB = db }
}

// WithDialTimeout bounds connection attempts and health checks.
func WithDialTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opts.DialTimeout = d
			s.dialTimeout = d
		}
	}
}

// WithOpTimeout bounds each read and write.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opts.ReadTimeout = d
			s.opts.WriteTimeout = d
			s.opts.PoolTimeout = d
		}
	}
}

// WithRetryCooldown sets how long the store stays down after a failure
// before a request may try to reconnect.
func WithRetryCooldown(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisLogger sets the store logger.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRedisClock overrides time.Now. Intended for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides time.Now. Intended for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMemoryTTL overrides DayTTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}
