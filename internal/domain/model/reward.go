package model

import "time"

// RewardTier is an admin-managed reward unlocked at Threshold.
type RewardTier struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Threshold   float64   `gorm:"not null;index" json:"threshold"`
	Message     string    `gorm:"size:500;not null" json:"message"`
	SecretCode  string    `gorm:"size:100;not null" json:"secret_code"`
	Active      bool      `gorm:"not null" json:"active"`
	SingleClaim bool      `gorm:"not null" json:"single_claim"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// TableName pins the table name.
func (RewardTier) TableName() string { return "reward_tiers" }

// RewardClaim records that PlayerID received RewardID. The pair is unique.
type RewardClaim struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RewardID      uint64    `gorm:"not null;uniqueIndex:idx_claims_reward_player" json:"reward_id"`
	PlayerID      string    `gorm:"size:50;not null;uniqueIndex:idx_claims_reward_player" json:"player_id"`
	ScoreAchieved float64   `gorm:"not null" json:"score_achieved"`
	ClaimedAt     time.Time `gorm:"not null" json:"claimed_at"`
}

// TableName pins the table name.
func (RewardClaim) TableName() string { return "reward_claims" }
