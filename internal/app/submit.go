package service

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

func validValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// sanitize normalizes a raw submission and rejects malformed input.
func sanitize(in model.Submission) (model.Submission, error) {
	out := model.Submission{
		PlayerID:    identity.PlayerID(in.PlayerID),
		DisplayName: identity.DisplayName(in.DisplayName),
		Tag:         identity.Tag(in.Tag),
		Value:       in.Value,
		Victory:     in.Victory,
		Fingerprint: in.Fingerprint,
	}
	if out.DisplayName == "" {
		return model.Submission{}, fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if !validValue(out.Value) {
		return model.Submission{}, fmt.Errorf("%w: value must be a finite non-negative number", ErrValidation)
	}
	return out, nil
}

// Submit runs one score through the pipeline. Steps after the durable insert
// never fail the call; a derived field that could not be computed is nil.
func (s *Service) Submit(ctx context.Context, in model.Submission) (types.SubmitResult, error) {
	start := s.now()
	defer func() { metrics.RecordSubmitLatency(metrics.Since(start)) }()

	sub, err := sanitize(in)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		return types.SubmitResult{}, err
	}

	if s.rateLimit > 0 && sub.Fingerprint != "" &&
		!s.ranking.Allow(ctx, sub.Fingerprint, s.rateLimit, rateWindow) {
		metrics.RecordSubmission(metrics.OutcomeRateLimited)
		return types.SubmitResult{}, ErrRateLimited
	}

	if verdict := s.gate.Evaluate(sub.Value, sub.Victory); !verdict.Accepted {
		metrics.RecordAntiCheatRejection()
		metrics.RecordSubmission(metrics.OutcomeRejected)
		if verdict.ShouldFlag {
			s.recordFlag(ctx, sub, model.FlagReasonVictoryBelowMinimum)
		}
		s.logger.Info(ctx, "submission rejected",
			logger.String("fingerprint", sub.Fingerprint),
			logger.Float64("value", sub.Value))
		return types.SubmitResult{Accepted: false, Flagged: true, Reason: model.FlagReasonVictoryBelowMinimum}, nil
	}

	flagged := s.isFlagged(ctx, sub.Fingerprint)

	now := s.now().UTC()
	day := identity.DayKey(now)
	member := identity.Member(sub.DisplayName, sub.Tag)
	res := types.SubmitResult{Accepted: true, Flagged: flagged}

	if rank, ok := s.ranking.UpsertIfBetter(ctx, day, member, sub.Value); ok {
		res.DailyRank = intPtr(int(rank) + 1)
	} else {
		s.enqueueReplay(ctx, model.RankingUpdate{Day: day, Member: member, Value: sub.Value, QueuedAt: now})
	}

	prev, hasPrev, prevErr := s.previousBest(ctx, sub)

	row := &model.Score{
		DisplayName: sub.DisplayName,
		Tag:         sub.Tag,
		Value:       sub.Value,
		PlayerID:    sub.PlayerID,
		Fingerprint: sub.Fingerprint,
		Victory:     sub.Victory,
		Flagged:     flagged,
		CreatedAt:   now,
	}
	id, err := s.scores.Insert(ctx, row)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeError)
		s.logger.Error(ctx, "durable insert failed", logger.Error(err))
		return types.SubmitResult{}, fmt.Errorf("%w: %w", ErrDurableWrite, err)
	}
	res.ScoreID = id

	if prevErr == nil {
		res.IsNewBest = !hasPrev || sub.Value > prev
		if res.IsNewBest {
			metrics.RecordPersonalBest()
		}
	}

	if !flagged {
		if better, err := s.scores.CountBetterThan(ctx, sub.Value, true); err != nil {
			s.logger.Warn(ctx, "all-time rank unavailable", logger.Error(err))
		} else {
			res.AllTimeRank = intPtr(int(better) + 1)
		}
	}

	metrics.RecordSubmission(metrics.OutcomeAccepted)
	s.logger.Debug(ctx, "submission accepted",
		logger.Uint64("scoreID", id),
		logger.String("member", member),
		logger.Float64("value", sub.Value),
		logger.Bool("newBest", res.IsNewBest),
		logger.Bool("flagged", flagged))
	return res, nil
}

// previousBest reads the historical best by player id, else by display name.
func (s *Service) previousBest(ctx context.Context, sub model.Submission) (float64, bool, error) {
	var (
		v     float64
		found bool
		err   error
	)
	if sub.PlayerID != "" {
		v, found, err = s.scores.BestForPlayer(ctx, sub.PlayerID)
	} else {
		v, found, err = s.scores.BestForName(ctx, sub.DisplayName)
	}
	if err != nil {
		s.logger.Warn(ctx, "previous best unavailable", logger.Error(err))
	}
	return v, found, err
}

func (s *Service) isFlagged(ctx context.Context, fingerprint string) bool {
	flagged, err := s.flags.IsFlagged(ctx, fingerprint)
	if err != nil {
		s.logger.Warn(ctx, "flag lookup failed", logger.Error(err))
		return false
	}
	return flagged
}

func (s *Service) recordFlag(ctx context.Context, sub model.Submission, reason string) {
	f := &model.Flag{
		Fingerprint: sub.Fingerprint,
		Reason:      reason,
		Value:       sub.Value,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.flags.Record(ctx, f); err != nil {
		s.logger.Warn(ctx, "flag record failed", logger.Error(err))
		return
	}
	metrics.RecordFlag()
}

func (s *Service) enqueueReplay(ctx context.Context, u model.RankingUpdate) {
	if s.replayQ == nil {
		return
	}
	if !s.replayQ.Enqueue(ctx, u) {
		s.logger.Warn(ctx, "replay queue rejected daily update", logger.String("member", u.Member))
	}
}

func intPtr(v int) *int { return &v }
