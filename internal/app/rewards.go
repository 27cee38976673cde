package service

import (
	"context"
	"fmt"

	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// CheckReward finds the best tier playerID qualifies for with value and
// claims it. Losing a concurrent claim is a normal outcome: the caller gets
// Earned=false and the code stays with the winner.
func (s *Service) CheckReward(ctx context.Context, playerID string, value float64) (types.RewardResult, error) {
	id := identity.PlayerID(playerID)
	if id == "" {
		return types.RewardResult{}, fmt.Errorf("%w: player id is required", ErrValidation)
	}
	if !validValue(value) {
		return types.RewardResult{}, fmt.Errorf("%w: value must be a finite non-negative number", ErrValidation)
	}

	tier, err := s.rewards.Qualifying(ctx, id, value)
	if err != nil {
		return types.RewardResult{}, fmt.Errorf("reward lookup: %w", err)
	}
	if tier == nil {
		metrics.RecordRewardClaim(metrics.ClaimNone)
		return types.RewardResult{Earned: false}, nil
	}

	won, err := s.rewards.Claim(ctx, tier, id, value)
	if err != nil {
		return types.RewardResult{}, fmt.Errorf("reward claim: %w", err)
	}
	if !won {
		metrics.RecordRewardClaim(metrics.ClaimLostRace)
		s.logger.Info(ctx, "reward claim lost race",
			logger.Uint64("tierID", tier.ID),
			logger.String("playerID", id))
		return types.RewardResult{Earned: false}, nil
	}

	metrics.RecordRewardClaim(metrics.ClaimWon)
	s.logger.Info(ctx, "reward claimed",
		logger.Uint64("tierID", tier.ID),
		logger.String("playerID", id),
		logger.Float64("value", value))
	return types.RewardResult{
		Earned: true,
		Reward: &types.Reward{Message: tier.Message, Code: tier.SecretCode, Threshold: tier.Threshold},
	}, nil
}
