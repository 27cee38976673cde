package model

import "time"

// Flag reasons.
const (
	FlagReasonVictoryBelowMinimum = "victory_below_minimum"
)

// Flag is an append-only suspicious activity record keyed by fingerprint.
type Flag struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Fingerprint string    `gorm:"size:32;not null;index" json:"fingerprint"`
	Reason      string    `gorm:"size:200;not null" json:"reason"`
	Value       float64   `gorm:"not null;default:0" json:"value"`
	ScoreID     *uint64   `json:"score_id,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName pins the table name.
func (Flag) TableName() string { return "flags" }
