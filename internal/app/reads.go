package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

// DailyLeaderboard returns today's best n pairs. It reads the fast store and
// falls back to the durable ledger when the fast store cannot answer. Both
// paths count runs from flagged origins and date every entry with the day.
func (s *Service) DailyLeaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	n = s.clampLimit(n)
	now := s.now().UTC()
	dayStart := identity.DayStart(now)

	if top, ok := s.ranking.TopN(ctx, identity.DayKey(now), n); ok {
		out := make([]types.Entry, len(top))
		for i, e := range top {
			out[i] = types.Entry{Rank: i + 1, DisplayName: e.DisplayName, Tag: e.Tag, Value: e.Value, Date: dayStart}
		}
		return out, nil
	}

	s.logger.Warn(ctx, "fast store unavailable, serving daily leaderboard from ledger")
	best, err := s.scores.TopToday(ctx, n, dayStart)
	if err != nil {
		return nil, fmt.Errorf("daily leaderboard: %w", err)
	}
	out := entries(best)
	for i := range out {
		out[i].Date = dayStart
	}
	return out, nil
}

// AllTimeLeaderboard returns the best n pairs over all time.
func (s *Service) AllTimeLeaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	best, err := s.scores.TopAllTime(ctx, s.clampLimit(n))
	if err != nil {
		return nil, fmt.Errorf("all-time leaderboard: %w", err)
	}
	return entries(best), nil
}

func entries(best []repository.Best) []types.Entry {
	out := make([]types.Entry, len(best))
	for i, b := range best {
		out[i] = types.Entry{Rank: i + 1, DisplayName: b.DisplayName, Tag: b.Tag, Value: b.Value, Date: b.LastPlayed}
	}
	return out
}

// Profile returns the stored identity of playerID.
func (s *Service) Profile(ctx context.Context, playerID string) (model.Profile, error) {
	id := identity.PlayerID(playerID)
	if id == "" {
		return model.Profile{}, fmt.Errorf("%w: player id is required", ErrValidation)
	}
	if p, ok := s.ranking.CachedProfile(ctx, id); ok {
		return p, nil
	}

	p, err := s.profiles.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("profile: %w", err)
	}
	s.cacheProfile(ctx, p)
	return p, nil
}

// SaveProfile binds playerID to a display name and tag.
func (s *Service) SaveProfile(ctx context.Context, playerID, displayName, tag string) (model.Profile, error) {
	p := model.Profile{
		PlayerID:    identity.PlayerID(playerID),
		DisplayName: identity.DisplayName(displayName),
		Tag:         identity.Tag(tag),
		UpdatedAt:   s.now().UTC(),
	}
	if p.PlayerID == "" {
		return model.Profile{}, fmt.Errorf("%w: player id is required", ErrValidation)
	}
	if p.DisplayName == "" {
		return model.Profile{}, fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if err := s.profiles.Upsert(ctx, &p); err != nil {
		return model.Profile{}, fmt.Errorf("%w: %w", ErrDurableWrite, err)
	}
	s.cacheProfile(ctx, p)
	return p, nil
}

func (s *Service) cacheProfile(ctx context.Context, p model.Profile) {
	if !s.ranking.CacheProfile(ctx, p, s.profileTTL) {
		s.logger.Debug(ctx, "profile not cached", logger.String("playerID", p.PlayerID))
	}
}
