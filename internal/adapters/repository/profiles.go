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

// ProfileStore keeps the latest identity binding per player.
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore wraps db.
func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get returns the profile of playerID or ErrNotFound.
func (s *ProfileStore) Get(ctx context.Context, playerID string) (p model.Profile, err error) {
	defer func(start time.Time) { observe("profile_get", start, err) }(time.Now())

	err = s.db.WithContext(ctx).Where("player_id = ?", playerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Upsert inserts p or overwrites the stored name, tag and timestamp.
func (s *ProfileStore) Upsert(ctx context.Context, p *model.Profile) (err error) {
	defer func(start time.Time) { observe("profile_upsert", start, err) }(time.Now())

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "tag", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
