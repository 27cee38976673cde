package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/okian/podium/internal/domain/model"
)

// FlagLedger stores suspicious-activity records keyed by fingerprint.
type FlagLedger struct {
	db *gorm.DB
}

// NewFlagLedger wraps db.
func NewFlagLedger(db *gorm.DB) *FlagLedger {
	return &FlagLedger{db: db}
}

// Record appends f.
func (l *FlagLedger) Record(ctx context.Context, f *model.Flag) (err error) {
	defer func(start time.Time) { observe("flag_record", start, err) }(time.Now())

	if err = l.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("record flag: %w", err)
	}
	return nil
}

// IsFlagged reports whether any flag exists for fingerprint. An empty
// fingerprint is never flagged.
func (l *FlagLedger) IsFlagged(ctx context.Context, fingerprint string) (flagged bool, err error) {
	if fingerprint == "" {
		return false, nil
	}
	defer func(start time.Time) { observe("flag_check", start, err) }(time.Now())

	var n int64
	err = l.db.WithContext(ctx).Model(&model.Flag{}).
		Where("fingerprint = ?", fingerprint).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check flag: %w", err)
	}
	return n > 0, nil
}

// List returns flags newest first.
func (l *FlagLedger) List(ctx context.Context, limit int) (out []model.Flag, err error) {
	defer func(start time.Time) { observe("flag_list", start, err) }(time.Now())

	if err = checkLimit(limit); err != nil {
		return nil, err
	}
	out = []model.Flag{}
	if err = l.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	return out, nil
}

// Clear deletes the flags of fingerprint, or every flag when fingerprint is
// empty. It returns the number of removed records.
func (l *FlagLedger) Clear(ctx context.Context, fingerprint string) (n int64, err error) {
	defer func(start time.Time) { observe("flag_clear", start, err) }(time.Now())

	q := l.db.WithContext(ctx)
	var res *gorm.DB
	if fingerprint == "" {
		res = q.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Flag{})
	} else {
		res = q.Where("fingerprint = ?", fingerprint).Delete(&model.Flag{})
	}
	if res.Error != nil {
		return 0, fmt.Errorf("clear flags: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of flags.
func (l *FlagLedger) Count(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe("flag_count", start, err) }(time.Now())

	err = l.db.WithContext(ctx).Model(&model.Flag{}).Count(&n).Error
	return n, err
}
