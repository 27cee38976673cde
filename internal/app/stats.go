package service

import (
	"context"
	"runtime"

	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	day := identity.DayKey(s.now())
	stats := map[string]interface{}{
		"started":              started,
		"day":                  day,
		"leaderboardSize":      s.leaderboardSize,
		"minCompletionSeconds": s.gate.MinCompletionSeconds(),
		"rateLimitPerMinute":   s.rateLimit,
	}

	available := s.ranking.Available(ctx)
	stats["fastStoreAvailable"] = available
	if players, ok := s.ranking.Cardinality(ctx, day); ok {
		stats["dailyPlayers"] = players
		metrics.UpdateDailyPlayers(players)
	}
	if s.replayQ != nil {
		stats["replayQueueLength"] = s.replayQ.Len(ctx)
	}
	if s.scores != nil {
		if n, err := s.scores.Count(ctx); err == nil {
			stats["totalScores"] = n
		}
	}
	if s.flags != nil {
		if n, err := s.flags.Count(ctx); err == nil {
			stats["totalFlags"] = n
		}
	}
	return stats
}

// RefreshMetrics updates gauges that are not driven by requests.
func (s *Service) RefreshMetrics(ctx context.Context) {
	stats := s.GetStats(ctx)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if mem.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(mem.PauseNs[(mem.NumGC+255)%256]) / 1e6)
	}

	s.logger.Debug(ctx, "metrics refreshed",
		logger.Any("fastStoreAvailable", stats["fastStoreAvailable"]),
		logger.Any("dailyPlayers", stats["dailyPlayers"]))
}
