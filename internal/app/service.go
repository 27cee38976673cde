// Package service implements the score submission pipeline and the reads and
// admin operations around it. It coordinates the fast ranking store and the
// durable ledgers without holding any shared mutable state of its own.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/podium/internal/adapters/ranking"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/anticheat"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

const (
	defaultLeaderboardSize = 40
	defaultProfileCacheTTL = time.Hour
	rateWindow             = time.Minute
)

// Ranking is the fast store as seen by the service.
type Ranking interface {
	ranking.Ranker
	ranking.Limiter
	ranking.ProfileCache
	Available(ctx context.Context) bool
}

// ScoreLedger is the durable source of truth for runs.
type ScoreLedger interface {
	Insert(ctx context.Context, s *model.Score) (uint64, error)
	BestForPlayer(ctx context.Context, playerID string) (float64, bool, error)
	BestForName(ctx context.Context, displayName string) (float64, bool, error)
	CountBetterThan(ctx context.Context, value float64, excludeFlagged bool) (int64, error)
	TopToday(ctx context.Context, n int, dayStart time.Time) ([]repository.Best, error)
	TopAllTime(ctx context.Context, n int) ([]repository.Best, error)
	BestTodayForMember(ctx context.Context, displayName, tag string, dayStart time.Time) (float64, bool, error)
	Get(ctx context.Context, id uint64) (model.Score, error)
	List(ctx context.Context, limit, offset int) ([]model.Score, error)
	Delete(ctx context.Context, id uint64) error
	SetFlagged(ctx context.Context, id uint64, flagged bool) error
	Count(ctx context.Context) (int64, error)
}

// FlagLedger stores suspicious-activity records.
type FlagLedger interface {
	Record(ctx context.Context, f *model.Flag) error
	IsFlagged(ctx context.Context, fingerprint string) (bool, error)
	List(ctx context.Context, limit int) ([]model.Flag, error)
	Clear(ctx context.Context, fingerprint string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// RewardLedger stores tiers and arbitrates claims.
type RewardLedger interface {
	ListTiers(ctx context.Context) ([]model.RewardTier, error)
	GetTier(ctx context.Context, id uint64) (model.RewardTier, error)
	CreateTier(ctx context.Context, t *model.RewardTier) error
	UpdateTier(ctx context.Context, t *model.RewardTier) error
	DeleteTier(ctx context.Context, id uint64) error
	Qualifying(ctx context.Context, playerID string, value float64) (*model.RewardTier, error)
	Claim(ctx context.Context, tier *model.RewardTier, playerID string, value float64) (bool, error)
	ResetClaims(ctx context.Context, tierID uint64) (int64, error)
}

// ProfileStore keeps player identity bindings.
type ProfileStore interface {
	Get(ctx context.Context, playerID string) (model.Profile, error)
	Upsert(ctx context.Context, p *model.Profile) error
}

// ReplayQueue parks daily ranking writes while the fast store is down.
type ReplayQueue interface {
	Enqueue(ctx context.Context, u model.RankingUpdate) bool
	Len(ctx context.Context) int
}

// ReplayPool drains the replay queue.
type ReplayPool interface {
	Start(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	gate     *anticheat.Gate
	ranking  Ranking
	scores   ScoreLedger
	flags    FlagLedger
	rewards  RewardLedger
	profiles ProfileStore
	replayQ  ReplayQueue
	replayP  ReplayPool

	leaderboardSize int
	rateLimit       int
	profileTTL      time.Duration
	now             func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGate sets the anti-cheat gate.
func WithGate(g *anticheat.Gate) Option {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithRanking sets the fast ranking store.
func WithRanking(r Ranking) Option {
	return func(s *Service) {
		if r != nil {
			s.ranking = r
		}
	}
}

// WithScores sets the durable score ledger.
func WithScores(l ScoreLedger) Option {
	return func(s *Service) { s.scores = l }
}

// WithFlags sets the flag ledger.
func WithFlags(l FlagLedger) Option {
	return func(s *Service) { s.flags = l }
}

// WithRewards sets the reward ledger.
func WithRewards(l RewardLedger) Option {
	return func(s *Service) { s.rewards = l }
}

// WithProfiles sets the profile store.
func WithProfiles(p ProfileStore) Option {
	return func(s *Service) { s.profiles = p }
}

// WithReplay sets the replay queue and the pool draining it.
func WithReplay(q ReplayQueue, p ReplayPool) Option {
	return func(s *Service) {
		s.replayQ = q
		s.replayP = p
	}
}

// WithLeaderboardSize caps leaderboard reads.
func WithLeaderboardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// WithRateLimit bounds submissions per fingerprint per minute. Zero disables.
func WithRateLimit(perMinute int) Option {
	return func(s *Service) {
		if perMinute >= 0 {
			s.rateLimit = perMinute
		}
	}
}

// WithProfileCacheTTL sets how long profiles stay cached in the fast store.
func WithProfileCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.profileTTL = ttl
		}
	}
}

// WithClock overrides time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. Ledgers must be supplied through options; the
// fast store defaults to an in-process memory store.
func New(opts ...Option) *Service {
	s := &Service{
		gate:            anticheat.New(),
		leaderboardSize: defaultLeaderboardSize,
		profileTTL:      defaultProfileCacheTTL,
		now:             time.Now,
		logger:          logger.GetOrNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ranking == nil {
		s.ranking = ranking.NewMemoryStore()
	}
	s.logger = s.logger.Named("service")
	return s
}

func (s *Service) validate() error {
	switch {
	case s.scores == nil:
		return fmt.Errorf("%w: score ledger missing", ErrNotConfigured)
	case s.flags == nil:
		return fmt.Errorf("%w: flag ledger missing", ErrNotConfigured)
	case s.rewards == nil:
		return fmt.Errorf("%w: reward ledger missing", ErrNotConfigured)
	case s.profiles == nil:
		return fmt.Errorf("%w: profile store missing", ErrNotConfigured)
	}
	return nil
}

// Start checks the wiring and starts the replay pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.validate(); err != nil {
		return err
	}
	if s.replayP != nil {
		s.replayP.Start(ctx)
	}
	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.Float64("minCompletionSeconds", s.gate.MinCompletionSeconds()),
		logger.Int("leaderboardSize", s.leaderboardSize),
		logger.Int("rateLimitPerMinute", s.rateLimit),
		logger.Bool("fastStoreAvailable", s.ranking.Available(ctx)),
	)
	return nil
}

// Stop drains the replay pool.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.replayP != nil {
		if err := s.replayP.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "replay pool shutdown", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

// Started reports whether Start has run.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// clampLimit maps a requested leaderboard size into [1, leaderboardSize].
func (s *Service) clampLimit(n int) int {
	if n <= 0 || n > s.leaderboardSize {
		return s.leaderboardSize
	}
	return n
}
