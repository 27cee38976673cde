package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/podium/pkg/logger"
)

// Run length bands in seconds. Most runs are ordinary, a few are long.
const (
	shortRunMin = 30.0
	shortRunMax = 600.0
	longRunMin  = 600.0
	longRunMax  = 3600.0
	longRunOdds = 0.1
)

// Normalize fills zero fields with defaults.
func (c *Config) Normalize() {
	if c.Players <= 0 {
		c.Players = DefaultPlayers
	}
	if c.Runs <= 0 {
		c.Runs = DefaultRuns
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MinVictory <= 0 {
		c.MinVictory = DefaultMinVictory
	}
}

// generateRuns creates cfg.Runs submissions spread over cfg.Players. Each
// player submits from its own origin so rate limits apply per player.
func generateRuns(ctx context.Context, cfg *Config, rng *rand.Rand, stats *Stats) []GeneratedRun {
	runs := make([]GeneratedRun, 0, cfg.Runs)
	for i := 0; i < cfg.Runs; i++ {
		p := rng.IntN(cfg.Players)
		r := GeneratedRun{
			PlayerID:       fmt.Sprintf("load-%05d", p),
			DisplayName:    fmt.Sprintf("player-%05d", p),
			Origin:         fmt.Sprintf("10.%d.%d.%d", (p>>16)&0xff, (p>>8)&0xff, p&0xff),
			IdempotencyKey: uuid.NewString(),
		}
		switch {
		case rng.Float64() < cfg.CheatRatio:
			r.Victory = true
			r.Value = rng.Float64() * cfg.MinVictory * 0.9
		case rng.Float64() < longRunOdds:
			r.Victory = true
			r.Value = longRunMin + rng.Float64()*(longRunMax-longRunMin)
		default:
			r.Value = shortRunMin + rng.Float64()*(shortRunMax-shortRunMin)
			r.Victory = r.Value >= cfg.MinVictory && rng.IntN(2) == 0
		}
		runs = append(runs, r)

		if rng.Float64() < cfg.RetryRatio {
			retry := r
			retry.Retry = true
			runs = append(runs, retry)
		}
	}
	stats.RunsGenerated = len(runs)
	logger.GetOrNop().Info(ctx, "generated runs", logger.Int("count", len(runs)), logger.Int("players", cfg.Players))
	return runs
}

// expectedBest returns the best accepted value per board member.
func expectedBest(runs []GeneratedRun, outcomes []Outcome) map[string]float64 {
	best := make(map[string]float64)
	for i, r := range runs {
		if outcomes[i] != OutcomeAccepted {
			continue
		}
		if v, ok := best[r.DisplayName]; !ok || r.Value > v {
			best[r.DisplayName] = r.Value
		}
	}
	return best
}
