// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers defaults, an optional YAML file and PODIUM_ env vars.
// - Errors returned from this package wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Ranking backends accepted by RankingBackend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDSN is the Postgres DSN of the durable ledger.
	DatabaseDSN string `koanf:"database_dsn"`

	// RankingBackend selects the fast ranking store: "redis" or "memory".
	RankingBackend string `koanf:"ranking_backend"`

	// Redis connection settings for the fast ranking store.
	RedisAddr          string        `koanf:"redis_addr"`
	RedisPassword      string        `koanf:"redis_password"`
	RedisDB            int           `koanf:"redis_db"`
	RedisDialTimeout   time.Duration `koanf:"redis_dial_timeout"`
	RedisOpTimeout     time.Duration `koanf:"redis_op_timeout"`
	RedisRetryCooldown time.Duration `koanf:"redis_retry_cooldown"`

	// MinCompletionSeconds is the fastest legitimate full-game completion.
	MinCompletionSeconds float64 `koanf:"min_completion_seconds"`

	// LeaderboardSize caps leaderboard reads.
	LeaderboardSize int `koanf:"leaderboard_size"`

	// AdminSecret gates /admin routes. Empty disables them.
	AdminSecret string `koanf:"admin_secret"`

	// RateLimitPerMinute bounds submissions per client fingerprint. Zero disables.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// ProfileCacheTTL bounds how long profiles stay in the fast store.
	ProfileCacheTTL time.Duration `koanf:"profile_cache_ttl"`

	// Daily ranking replay queue used while the fast store is down.
	ReplayQueueSize   int           `koanf:"replay_queue_size"`
	ReplayWorkers     int           `koanf:"replay_workers"`
	ReplayBackoff     time.Duration `koanf:"replay_backoff"`
	ReplayMaxAttempts int           `koanf:"replay_max_attempts"`

	// Idempotency-Key memory for score submissions. Zero max keys disables it.
	IdempotencyTTL     time.Duration `koanf:"idempotency_ttl"`
	IdempotencyMaxKeys int           `koanf:"idempotency_max_keys"`

	// TrustedProxies is a comma-separated list of CIDRs or addresses whose
	// X-Forwarded-For header is believed. Empty means the peer address is the
	// client origin.
	TrustedProxies string `koanf:"trusted_proxies"`

	// StatsInterval is the period of the stats and metrics refresh job.
	StatsInterval time.Duration `koanf:"stats_interval"`

	// Prometheus settings. Disabled metrics keep /healthz serving an idle
	// registry.
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsNamespace string `koanf:"metrics_namespace"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		DatabaseDSN:          "host=localhost user=podium password=podium dbname=podium port=5432 sslmode=disable",
		RankingBackend:       BackendRedis,
		RedisAddr:            "localhost:6379",
		RedisDialTimeout:     500 * time.Millisecond,
		RedisOpTimeout:       300 * time.Millisecond,
		RedisRetryCooldown:   5 * time.Second,
		MinCompletionSeconds: 180,
		LeaderboardSize:      40,
		RateLimitPerMinute:   30,
		ProfileCacheTTL:      time.Hour,
		ReplayQueueSize:      10_000,
		ReplayWorkers:        2,
		ReplayBackoff:        2 * time.Second,
		ReplayMaxAttempts:    5,
		IdempotencyTTL:       10 * time.Minute,
		IdempotencyMaxKeys:   50_000,
		StatsInterval:        10 * time.Second,
		MetricsEnabled:       true,
		MetricsNamespace:     "podium",
	}
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(c.TrustedProxies, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: trusted_proxies: %w", ErrInvalidConfig, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted_proxies: %w", ErrInvalidConfig, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
