// Package model contains domain models passed between layers.
package model

import "time"

// Score is one submitted run. Rows are immutable except for Flagged.
type Score struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayName string    `gorm:"size:50;not null;index:idx_scores_name_tag" json:"display_name"`
	Tag         string    `gorm:"size:100;not null;default:'';index:idx_scores_name_tag" json:"tag"`
	Value       float64   `gorm:"not null;index" json:"value"`
	PlayerID    string    `gorm:"size:50;not null;default:'';index" json:"player_id,omitempty"`
	Fingerprint string    `gorm:"size:32;not null;default:'';index" json:"fingerprint"`
	Victory     bool      `gorm:"not null;default:false" json:"victory"`
	Flagged     bool      `gorm:"not null;default:false;index" json:"flagged"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName pins the table name.
func (Score) TableName() string { return "scores" }

// HasPlayer reports whether the run carries a caller-supplied player id.
func (s *Score) HasPlayer() bool { return s.PlayerID != "" }

// Submission is a sanitized score submission before it is persisted.
type Submission struct {
	PlayerID    string
	DisplayName string
	Tag         string
	Value       float64
	Victory     bool
	// Fingerprint is the non-identifying request origin key. It is never
	// used as player identity.
	Fingerprint string
}
