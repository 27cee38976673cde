package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/podium/internal/loadtest"
	"github.com/okian/podium/pkg/logger"
)

const (
	defaultCheatRatio = 0.05
	defaultRetryRatio = 0.05
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players    = flag.Int("players", loadtest.DefaultPlayers, "Distinct players")
		runs       = flag.Int("runs", loadtest.DefaultRuns, "Runs to submit")
		cheat      = flag.Float64("cheat", defaultCheatRatio, "Share of impossible victory runs")
		retry      = flag.Float64("retry", defaultRetryRatio, "Share of runs resent with the same Idempotency-Key")
		topN       = flag.Int("top", loadtest.DefaultTopN, "Board rows to verify")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent submitters")
		timeout    = flag.Duration("timeout", loadtest.DefaultTimeout, "HTTP request timeout")
		minVictory = flag.Float64("min-victory", loadtest.DefaultMinVictory, "Server anti-cheat floor in seconds")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		outputFile = flag.String("output", "", "Write generated runs to this JSON file")
		verbose    = flag.Bool("verbose", false, "Log progress")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:    *baseURL,
		Players:    *players,
		Runs:       *runs,
		CheatRatio: *cheat,
		RetryRatio: *retry,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		MinVictory: *minVictory,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg, *seed); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
