package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/podium/internal/domain/model"
)

// RewardLedger holds reward tiers and their claims.
type RewardLedger struct {
	db *gorm.DB
}

// NewRewardLedger wraps db.
func NewRewardLedger(db *gorm.DB) *RewardLedger {
	return &RewardLedger{db: db}
}

// ListTiers returns every tier by ascending threshold.
func (l *RewardLedger) ListTiers(ctx context.Context) (out []model.RewardTier, err error) {
	defer func(start time.Time) { observe("tier_list", start, err) }(time.Now())

	out = []model.RewardTier{}
	if err = l.db.WithContext(ctx).Order("threshold ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return out, nil
}

// GetTier returns one tier or ErrNotFound.
func (l *RewardLedger) GetTier(ctx context.Context, id uint64) (t model.RewardTier, err error) {
	defer func(start time.Time) { observe("tier_get", start, err) }(time.Now())

	err = l.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.RewardTier{}, ErrNotFound
	}
	if err != nil {
		return model.RewardTier{}, fmt.Errorf("get tier: %w", err)
	}
	return t, nil
}

// CreateTier inserts t.
func (l *RewardLedger) CreateTier(ctx context.Context, t *model.RewardTier) (err error) {
	defer func(start time.Time) { observe("tier_create", start, err) }(time.Now())

	if err = l.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create tier: %w", err)
	}
	return nil
}

// UpdateTier overwrites the editable columns of t.
func (l *RewardLedger) UpdateTier(ctx context.Context, t *model.RewardTier) (err error) {
	defer func(start time.Time) { observe("tier_update", start, err) }(time.Now())

	res := l.db.WithContext(ctx).Model(&model.RewardTier{}).
		Where("id = ?", t.ID).
		Select("threshold", "message", "secret_code", "active", "single_claim").
		Updates(t)
	if res.Error != nil {
		return fmt.Errorf("update tier: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err = l.GetTier(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTier removes a tier together with its claims.
func (l *RewardLedger) DeleteTier(ctx context.Context, id uint64) (err error) {
	defer func(start time.Time) { observe("tier_delete", start, err) }(time.Now())

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reward_id = ?", id).Delete(&model.RewardClaim{}).Error; err != nil {
			return fmt.Errorf("delete claims: %w", err)
		}
		res := tx.Delete(&model.RewardTier{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete tier: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Qualifying returns the highest-threshold active tier with threshold <=
// value that playerID may still receive, or nil.
func (l *RewardLedger) Qualifying(ctx context.Context, playerID string, value float64) (tier *model.RewardTier, err error) {
	defer func(start time.Time) { observe("tier_qualifying", start, err) }(time.Now())

	claimed := l.db.Model(&model.RewardClaim{}).Select("reward_id").Where("player_id = ?", playerID)

	var t model.RewardTier
	err = l.db.WithContext(ctx).
		Where("active = ? AND threshold <= ?", true, value).
		Where("single_claim = ? OR id NOT IN (?)", false, claimed).
		Order("threshold DESC, id ASC").
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("qualifying tier: %w", err)
	}
	return &t, nil
}

// Claim records that playerID received tier with one atomic insert. It
// reports whether this call won the claim. Unlimited tiers always win and
// keep the latest achieved value.
func (l *RewardLedger) Claim(ctx context.Context, tier *model.RewardTier, playerID string, value float64) (won bool, err error) {
	defer func(start time.Time) { observe("claim", start, err) }(time.Now())

	c := model.RewardClaim{
		RewardID:      tier.ID,
		PlayerID:      playerID,
		ScoreAchieved: value,
		ClaimedAt:     time.Now().UTC(),
	}
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "reward_id"}, {Name: "player_id"}},
		DoNothing: true,
	}
	if !tier.SingleClaim {
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "reward_id"}, {Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score_achieved", "claimed_at"}),
		}
	}

	res := l.db.WithContext(ctx).Clauses(conflict).Create(&c)
	if res.Error != nil {
		return false, fmt.Errorf("claim: %w", res.Error)
	}
	if !tier.SingleClaim {
		return true, nil
	}
	return res.RowsAffected == 1, nil
}

// ResetClaims removes every claim of tierID and returns how many were removed.
func (l *RewardLedger) ResetClaims(ctx context.Context, tierID uint64) (n int64, err error) {
	defer func(start time.Time) { observe("claims_reset", start, err) }(time.Now())

	if _, err = l.GetTier(ctx, tierID); err != nil {
		return 0, err
	}
	res := l.db.WithContext(ctx).Where("reward_id = ?", tierID).Delete(&model.RewardClaim{})
	if res.Error != nil {
		return 0, fmt.Errorf("reset claims: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ClaimCount returns the number of claims of tierID.
func (l *RewardLedger) ClaimCount(ctx context.Context, tierID uint64) (n int64, err error) {
	defer func(start time.Time) { observe("claim_count", start, err) }(time.Now())

	err = l.db.WithContext(ctx).Model(&model.RewardClaim{}).Where("reward_id = ?", tierID).Count(&n).Error
	return n, err
}
