package model

import "time"

// Profile is the latest identity binding for a player.
type Profile struct {
	PlayerID    string    `gorm:"primaryKey;size:50" json:"player_id"`
	DisplayName string    `gorm:"size:50;not null" json:"display_name"`
	Tag         string    `gorm:"size:100;not null;default:''" json:"tag"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// TableName pins the table name.
func (Profile) TableName() string { return "profiles" }
