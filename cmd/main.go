package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/http/site"
	"github.com/okian/podium/internal/adapters/http/swagger"
	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/ranking"
	"github.com/okian/podium/internal/adapters/repository"
	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/anticheat"
	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	sweepInterval     = time.Minute
)

func main() {
	// Only the custom registry is exported.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal(ctx, "failed to load config", logger.Error(err))
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(ctx, "podium exited", logger.Error(err))
	}
}

// run owns the process lifetime: it blocks until ctx is cancelled and then
// shuts everything down in reverse order.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	configureMetrics(cfg)

	db, err := repository.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := repository.Close(db); err != nil {
			log.Warn(ctx, "closing ledger", logger.Error(err))
		}
	}()

	store := newRanking(cfg, log)
	defer func() { _ = store.Close() }()

	svc := newService(cfg, db, store, log)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	sched, err := newScheduler(ctx, cfg, svc, store)
	if err != nil {
		return err
	}
	sched.Start()

	srv := newHTTPServer(cfg, svc)
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		log.Warn(shutdownCtx, "scheduler shutdown failed", logger.Error(err))
	}
	svc.Stop(shutdownCtx)

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// configureMetrics rebuilds the global metrics manager from cfg. The stats
// job reads its period back through metrics.RefreshInterval.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.StatsInterval),
	)
}

// newRanking selects the fast ranking backend.
func newRanking(cfg *config.Config, log logger.Logger) ranking.Store {
	if cfg.RankingBackend == config.BackendMemory {
		log.Info(context.Background(), "using in-process ranking store")
		return ranking.NewMemoryStore()
	}
	return ranking.NewRedisStore(cfg.RedisAddr,
		ranking.WithPassword(cfg.RedisPassword),
		ranking.WithDB(cfg.RedisDB),
		ranking.WithDialTimeout(cfg.RedisDialTimeout),
		ranking.WithOpTimeout(cfg.RedisOpTimeout),
		ranking.WithRetryCooldown(cfg.RedisRetryCooldown),
		ranking.WithRedisLogger(log),
	)
}

// newService wires the ledgers, the fast store and the replay pool.
func newService(cfg *config.Config, db *gorm.DB, store ranking.Store, log logger.Logger) *app.Service {
	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.ReplayQueueSize))
	pool := worker.NewPool(cfg.ReplayWorkers, q, store,
		worker.WithLogger(log),
		worker.WithBackoff(cfg.ReplayBackoff),
		worker.WithMaxAttempts(cfg.ReplayMaxAttempts),
	)
	return app.New(
		app.WithLogger(log),
		app.WithGate(anticheat.New(anticheat.WithMinCompletionSeconds(cfg.MinCompletionSeconds))),
		app.WithRanking(store),
		app.WithScores(repository.NewScoreLedger(db)),
		app.WithFlags(repository.NewFlagLedger(db)),
		app.WithRewards(repository.NewRewardLedger(db)),
		app.WithProfiles(repository.NewProfileStore(db)),
		app.WithReplay(q, pool),
		app.WithLeaderboardSize(cfg.LeaderboardSize),
		app.WithRateLimit(cfg.RateLimitPerMinute),
		app.WithProfileCacheTTL(cfg.ProfileCacheTTL),
	)
}

// newScheduler registers the periodic jobs. The caller starts it.
func newScheduler(ctx context.Context, cfg *config.Config, svc *app.Service, store ranking.Store) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(metrics.RefreshInterval()),
		gocron.NewTask(func() { svc.RefreshMetrics(ctx) }),
		gocron.WithName("refresh-metrics"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	if mem, ok := store.(*ranking.MemoryStore); ok {
		_, err = sched.NewJob(
			gocron.DurationJob(sweepInterval),
			gocron.NewTask(func() { mem.Sweep() }),
			gocron.WithName("sweep-expired-days"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// newHTTPServer registers every route on a fresh mux.
func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	// Load has already validated the list.
	trusted, _ := cfg.TrustedProxyPrefixes()
	opts := []api.Option{
		api.WithAdminSecret(cfg.AdminSecret),
		api.WithTrustedProxies(trusted),
	}
	if cfg.IdempotencyMaxKeys > 0 {
		opts = append(opts, api.WithDeduper(dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(cfg.IdempotencyMaxKeys),
			dedupe.WithTTL(cfg.IdempotencyTTL),
		)))
	}

	mux := http.NewServeMux()
	site.Register(mux)
	swagger.Register(mux)
	api.NewServer(svc, svc, svc, opts...).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.RequestIDMiddleware(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
