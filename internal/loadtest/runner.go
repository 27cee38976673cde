package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/podium/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete load run. seed makes the generated runs
// reproducible.
func Run(ctx context.Context, cfg *Config, seed uint64) (*Stats, error) {
	cfg.Normalize()
	log := logger.GetOrNop()
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting podium load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("runs", cfg.Runs),
		logger.Int("workers", cfg.Workers),
		logger.Float64("cheatRatio", cfg.CheatRatio),
		logger.Float64("retryRatio", cfg.RetryRatio))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	runs := generateRuns(ctx, cfg, rng, stats)

	outcomes := submitRuns(ctx, cfg, runs, stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	board, err := fetchBoard(ctx, cfg, stats)
	if err != nil {
		return stats, fmt.Errorf("board retrieval failed: %w", err)
	}
	if err := verifyBoard(ctx, board, expectedBest(runs, outcomes)); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveRuns(cfg.OutputFile, runs); err != nil {
			log.Warn(ctx, "failed to save runs", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// saveRuns writes the generated runs as a JSON array.
func saveRuns(filename string, runs []GeneratedRun) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.GetOrNop().Info(ctx, "final statistics",
		logger.Int("runsGenerated", stats.RunsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed),
		logger.Int("boardEntries", stats.BoardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("runsPerSecond", perSecond))
}
