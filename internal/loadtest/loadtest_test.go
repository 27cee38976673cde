package loadtest

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/ranking"
	"github.com/okian/podium/internal/adapters/repository"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/pkg/logger"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenDialector(ctx, sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	svc := service.New(
		service.WithLogger(logger.Nop()),
		service.WithRanking(ranking.NewMemoryStore()),
		service.WithScores(repository.NewScoreLedger(db)),
		service.WithFlags(repository.NewFlagLedger(db)),
		service.WithRewards(repository.NewRewardLedger(db)),
		service.WithProfiles(repository.NewProfileStore(db)),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	mux := http.NewServeMux()
	api.NewServer(svc, svc, svc,
		api.WithDeduper(dedupe.NewInMemoryDeduper()),
		api.WithTrustedProxies([]netip.Prefix{netip.MustParsePrefix("127.0.0.0/8")}),
	).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop(context.Background())
		_ = repository.Close(db)
	})
	return srv
}

func TestRunAgainstLiveStack(t *testing.T) {
	Convey("Given a running podium stack", t, func() {
		srv := newServer(t)
		out := filepath.Join(t.TempDir(), "runs", "runs.json")
		cfg := &Config{
			BaseURL:    srv.URL,
			Players:    25,
			Runs:       150,
			CheatRatio: 0.1,
			RetryRatio: 0.1,
			Workers:    4,
			OutputFile: out,
		}

		Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), cfg, 42)

			Convey("Then the board agrees with the accepted runs", func() {
				So(err, ShouldBeNil)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Accepted, ShouldBeGreaterThan, 0)
				So(stats.Rejected, ShouldBeGreaterThan, 0)
				So(stats.Duplicates, ShouldEqual, stats.RunsGenerated-cfg.Runs)
				So(stats.BoardEntries, ShouldBeGreaterThan, 0)
				So(stats.BoardEntries, ShouldBeLessThanOrEqualTo, DefaultTopN)
				_, statErr := os.Stat(out)
				So(statErr, ShouldBeNil)
			})
		})
	})

	Convey("Given no service", t, func() {
		cfg := &Config{BaseURL: "http://127.0.0.1:1"}

		Convey("Then the health check fails fast", func() {
			_, err := Run(context.Background(), cfg, 1)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGenerateRuns(t *testing.T) {
	Convey("Given a generator config", t, func() {
		cfg := &Config{Players: 5, Runs: 500, CheatRatio: 0.2, RetryRatio: 0.1}
		cfg.Normalize()
		runs := generateRuns(context.Background(), cfg, rand.New(rand.NewPCG(7, 7)), &Stats{})

		Convey("Then cheat runs are victories below the floor", func() {
			cheats, retries := 0, 0
			for _, r := range runs {
				if r.Victory && r.Value < cfg.MinVictory {
					cheats++
				}
				if r.Retry {
					retries++
				}
				So(r.Origin, ShouldNotBeEmpty)
				So(r.IdempotencyKey, ShouldNotBeEmpty)
			}
			So(cheats, ShouldBeGreaterThan, 0)
			So(retries, ShouldBeGreaterThan, 0)
			So(len(runs), ShouldEqual, cfg.Runs+retries)
		})
	})
}

func TestVerifyBoard(t *testing.T) {
	ctx := context.Background()
	best := map[string]float64{"a": 300, "b": 250, "c": 250, "d": 100}

	Convey("Given the best accepted values", t, func() {
		Convey("When the board matches", func() {
			board := []Entry{
				{Rank: 1, DisplayName: "a", Value: 300},
				{Rank: 2, DisplayName: "c", Value: 250},
				{Rank: 3, DisplayName: "b", Value: 250},
			}
			So(verifyBoard(ctx, board, best), ShouldBeNil)
		})

		Convey("When a row shows a stale value", func() {
			board := []Entry{{Rank: 1, DisplayName: "a", Value: 200}}
			So(errors.Is(verifyBoard(ctx, board, best), ErrMismatch), ShouldBeTrue)
		})

		Convey("When an unknown member appears", func() {
			board := []Entry{{Rank: 1, DisplayName: "zed", Value: 300}}
			So(errors.Is(verifyBoard(ctx, board, best), ErrMismatch), ShouldBeTrue)
		})

		Convey("When rows are out of order", func() {
			board := []Entry{
				{Rank: 1, DisplayName: "d", Value: 100},
				{Rank: 2, DisplayName: "a", Value: 300},
			}
			So(errors.Is(verifyBoard(ctx, board, best), ErrMismatch), ShouldBeTrue)
		})

		Convey("When the board is empty", func() {
			So(errors.Is(verifyBoard(ctx, nil, best), ErrMismatch), ShouldBeTrue)
			So(verifyBoard(ctx, nil, map[string]float64{}), ShouldBeNil)
		})
	})
}
