package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

const (
	maxTierMessage = 500
	maxTierCode    = 100
	maxAdminList   = 500
)

// TierInput carries the admin-editable fields of a reward tier. Nil
// booleans default to true on create and keep the stored value on update.
type TierInput struct {
	Threshold   float64
	Message     string
	SecretCode  string
	Active      *bool
	SingleClaim *bool
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func adminLimit(n int) int {
	if n <= 0 || n > maxAdminList {
		return maxAdminList
	}
	return n
}

// ListScores returns score rows newest first.
func (s *Service) ListScores(ctx context.Context, limit, offset int) ([]model.Score, error) {
	return s.scores.List(ctx, adminLimit(limit), offset)
}

// DeleteScore removes a score row. When the row was today's best for its
// pair, the pair's daily entry is rebuilt from the remaining rows of today.
func (s *Service) DeleteScore(ctx context.Context, id uint64) error {
	row, err := s.scores.Get(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if err := s.scores.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	s.logger.Info(ctx, "score deleted", logger.Uint64("scoreID", id))

	now := s.now().UTC()
	dayStart := identity.DayStart(now)
	if row.CreatedAt.Before(dayStart) {
		return nil
	}
	s.rebuildDaily(ctx, row, now)
	return nil
}

func (s *Service) rebuildDaily(ctx context.Context, row model.Score, now time.Time) {
	day := identity.DayKey(now)
	member := identity.Member(row.DisplayName, row.Tag)

	current, found, ok := s.ranking.Best(ctx, day, member)
	if !ok || !found || current != row.Value {
		return
	}
	if !s.ranking.Remove(ctx, day, member) {
		return
	}
	next, found, err := s.scores.BestTodayForMember(ctx, row.DisplayName, row.Tag, identity.DayStart(now))
	if err != nil {
		s.logger.Warn(ctx, "daily entry rebuild failed", logger.Error(err))
		return
	}
	if found {
		s.ranking.UpsertIfBetter(ctx, day, member, next)
	}
}

// UnflagScore clears the flagged bit of a score row.
func (s *Service) UnflagScore(ctx context.Context, id uint64) error {
	if err := s.scores.SetFlagged(ctx, id, false); err != nil {
		return notFound(err)
	}
	s.logger.Info(ctx, "score unflagged", logger.Uint64("scoreID", id))
	return nil
}

// ListFlags returns flag records newest first.
func (s *Service) ListFlags(ctx context.Context, limit int) ([]model.Flag, error) {
	return s.flags.List(ctx, adminLimit(limit))
}

// ClearFlags removes the flags of fingerprint, or all flags when empty.
func (s *Service) ClearFlags(ctx context.Context, fingerprint string) (int64, error) {
	n, err := s.flags.Clear(ctx, strings.TrimSpace(fingerprint))
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "flags cleared", logger.String("fingerprint", fingerprint), logger.Int64("removed", n))
	return n, nil
}

// ListTiers returns reward tiers by ascending threshold.
func (s *Service) ListTiers(ctx context.Context) ([]model.RewardTier, error) {
	return s.rewards.ListTiers(ctx)
}

func (in TierInput) validate() error {
	switch {
	case !validValue(in.Threshold):
		return fmt.Errorf("%w: threshold must be a finite non-negative number", ErrValidation)
	case strings.TrimSpace(in.Message) == "":
		return fmt.Errorf("%w: message is required", ErrValidation)
	case len([]rune(in.Message)) > maxTierMessage:
		return fmt.Errorf("%w: message is too long", ErrValidation)
	case len([]rune(in.SecretCode)) > maxTierCode:
		return fmt.Errorf("%w: secret code is too long", ErrValidation)
	}
	return nil
}

// CreateTier adds a reward tier. An empty secret code is generated.
func (s *Service) CreateTier(ctx context.Context, in TierInput) (model.RewardTier, error) {
	if err := in.validate(); err != nil {
		return model.RewardTier{}, err
	}
	t := model.RewardTier{
		Threshold:   in.Threshold,
		Message:     strings.TrimSpace(in.Message),
		SecretCode:  strings.TrimSpace(in.SecretCode),
		Active:      boolOr(in.Active, true),
		SingleClaim: boolOr(in.SingleClaim, true),
		CreatedAt:   s.now().UTC(),
	}
	if t.SecretCode == "" {
		t.SecretCode = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if err := s.rewards.CreateTier(ctx, &t); err != nil {
		return model.RewardTier{}, fmt.Errorf("%w: %w", ErrDurableWrite, err)
	}
	s.logger.Info(ctx, "reward tier created", logger.Uint64("tierID", t.ID), logger.Float64("threshold", t.Threshold))
	return t, nil
}

// UpdateTier overwrites a reward tier.
func (s *Service) UpdateTier(ctx context.Context, id uint64, in TierInput) (model.RewardTier, error) {
	if err := in.validate(); err != nil {
		return model.RewardTier{}, err
	}
	t, err := s.rewards.GetTier(ctx, id)
	if err != nil {
		return model.RewardTier{}, notFound(err)
	}
	t.Threshold = in.Threshold
	t.Message = strings.TrimSpace(in.Message)
	if code := strings.TrimSpace(in.SecretCode); code != "" {
		t.SecretCode = code
	}
	t.Active = boolOr(in.Active, t.Active)
	t.SingleClaim = boolOr(in.SingleClaim, t.SingleClaim)

	if err := s.rewards.UpdateTier(ctx, &t); err != nil {
		return model.RewardTier{}, notFound(err)
	}
	s.logger.Info(ctx, "reward tier updated", logger.Uint64("tierID", id))
	return t, nil
}

// DeleteTier removes a tier and its claims.
func (s *Service) DeleteTier(ctx context.Context, id uint64) error {
	if err := s.rewards.DeleteTier(ctx, id); err != nil {
		return notFound(err)
	}
	s.logger.Info(ctx, "reward tier deleted", logger.Uint64("tierID", id))
	return nil
}

// ResetClaims lets every player claim tier id again.
func (s *Service) ResetClaims(ctx context.Context, id uint64) (int64, error) {
	n, err := s.rewards.ResetClaims(ctx, id)
	if err != nil {
		return 0, notFound(err)
	}
	s.logger.Info(ctx, "reward claims reset", logger.Uint64("tierID", id), logger.Int64("removed", n))
	return n, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
