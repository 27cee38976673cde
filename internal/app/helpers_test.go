package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/ranking"
	"github.com/okian/podium/internal/adapters/repository"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/anticheat"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

var noon = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const today = "2026-10-19"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// flakyRanking is a memory fast store that can be switched off.
type flakyRanking struct {
	*ranking.MemoryStore
	down atomic.Bool
}

func (f *flakyRanking) UpsertIfBetter(ctx context.Context, day, member string, v float64) (int64, bool) {
	if f.down.Load() {
		return 0, false
	}
	return f.MemoryStore.UpsertIfBetter(ctx, day, member, v)
}

func (f *flakyRanking) TopN(ctx context.Context, day string, n int) ([]ranking.Entry, bool) {
	if f.down.Load() {
		return nil, false
	}
	return f.MemoryStore.TopN(ctx, day, n)
}

func (f *flakyRanking) Cardinality(ctx context.Context, day string) (int64, bool) {
	if f.down.Load() {
		return 0, false
	}
	return f.MemoryStore.Cardinality(ctx, day)
}

func (f *flakyRanking) Best(ctx context.Context, day, member string) (float64, bool, bool) {
	if f.down.Load() {
		return 0, false, false
	}
	return f.MemoryStore.Best(ctx, day, member)
}

func (f *flakyRanking) Allow(ctx context.Context, key string, limit int, w time.Duration) bool {
	if f.down.Load() {
		return true
	}
	return f.MemoryStore.Allow(ctx, key, limit, w)
}

func (f *flakyRanking) Available(context.Context) bool { return !f.down.Load() }

// brokenScores fails every insert.
type brokenScores struct {
	*repository.ScoreLedger
}

func (brokenScores) Insert(context.Context, *model.Score) (uint64, error) {
	return 0, errors.New("disk full")
}

type env struct {
	svc     *service.Service
	fast    *flakyRanking
	scores  *repository.ScoreLedger
	flags   *repository.FlagLedger
	rewards *repository.RewardLedger
	queue   *queue.InMemoryQueue
	clock   *clock
}

func newEnv(t *testing.T, opts ...service.Option) *env {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenDialector(ctx, sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = repository.Close(db) })

	c := &clock{t: noon}
	e := &env{
		fast:    &flakyRanking{MemoryStore: ranking.NewMemoryStore(ranking.WithMemoryClock(c.Now))},
		scores:  repository.NewScoreLedger(db),
		flags:   repository.NewFlagLedger(db),
		rewards: repository.NewRewardLedger(db),
		queue:   queue.NewInMemoryQueue(queue.WithCapacity(10)),
		clock:   c,
	}
	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithGate(anticheat.New()),
		service.WithRanking(e.fast),
		service.WithScores(e.scores),
		service.WithFlags(e.flags),
		service.WithRewards(e.rewards),
		service.WithProfiles(repository.NewProfileStore(db)),
		service.WithReplay(e.queue, nil),
		service.WithClock(c.Now),
	}
	e.svc = service.New(append(base, opts...)...)
	return e
}

func run(name string, value float64) model.Submission {
	return model.Submission{DisplayName: name, Value: value, Fingerprint: "fp-" + name}
}

func playerRun(player, name string, value float64) model.Submission {
	s := run(name, value)
	s.PlayerID = player
	return s
}
