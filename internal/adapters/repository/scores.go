package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/okian/podium/internal/domain/model"
)

// distinctPlayer collapses rows to one key per player. Rows without a
// player id count individually.
const distinctPlayer = "COUNT(DISTINCT CASE WHEN player_id <> '' THEN player_id ELSE 'row:' || CAST(id AS TEXT) END)"

// Best is the best value of one (display name, tag) pair.
type Best struct {
	DisplayName string
	Tag         string
	Value       float64
	// LastPlayed is the creation time of the pair's most recent counted run.
	LastPlayed time.Time
}

// ScoreLedger is the append-mostly store of submitted runs.
type ScoreLedger struct {
	db *gorm.DB
}

// NewScoreLedger wraps db.
func NewScoreLedger(db *gorm.DB) *ScoreLedger {
	return &ScoreLedger{db: db}
}

// Insert persists s and returns its assigned id.
func (l *ScoreLedger) Insert(ctx context.Context, s *model.Score) (id uint64, err error) {
	defer func(start time.Time) { observe("score_insert", start, err) }(time.Now())

	if err = l.db.WithContext(ctx).Create(s).Error; err != nil {
		return 0, fmt.Errorf("insert score: %w", err)
	}
	return s.ID, nil
}

// BestForPlayer returns the highest value ever recorded for playerID,
// flagged rows included.
func (l *ScoreLedger) BestForPlayer(ctx context.Context, playerID string) (float64, bool, error) {
	return l.best(ctx, "best_for_player", "player_id = ?", playerID)
}

// BestForName returns the highest value ever recorded under displayName.
func (l *ScoreLedger) BestForName(ctx context.Context, displayName string) (float64, bool, error) {
	return l.best(ctx, "best_for_name", "display_name = ?", displayName)
}

func (l *ScoreLedger) best(ctx context.Context, op, where string, arg any) (v float64, found bool, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	var best *float64
	err = l.db.WithContext(ctx).Model(&model.Score{}).
		Select("MAX(value)").
		Where(where, arg).
		Row().Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if best == nil {
		return 0, false, nil
	}
	return *best, true, nil
}

// CountBetterThan counts distinct players holding a value strictly greater
// than value.
func (l *ScoreLedger) CountBetterThan(ctx context.Context, value float64, excludeFlagged bool) (n int64, err error) {
	defer func(start time.Time) { observe("count_better", start, err) }(time.Now())

	q := l.db.WithContext(ctx).Model(&model.Score{}).Where("value > ?", value)
	if excludeFlagged {
		q = q.Where("flagged = ?", false)
	}
	if err = q.Select(distinctPlayer).Row().Scan(&n); err != nil {
		return 0, fmt.Errorf("count better: %w", err)
	}
	return n, nil
}

// TopAllTime returns the best n (display name, tag) pairs over all time,
// flagged rows excluded.
func (l *ScoreLedger) TopAllTime(ctx context.Context, n int) ([]Best, error) {
	return l.top(ctx, "top_all_time", n, time.Time{}, true)
}

// TopToday returns the best n pairs among runs created at or after dayStart.
// Flagged rows count, as they do on the fast store's daily board.
func (l *ScoreLedger) TopToday(ctx context.Context, n int, dayStart time.Time) ([]Best, error) {
	return l.top(ctx, "top_today", n, dayStart, false)
}

type bestRow struct {
	DisplayName string
	Tag         string
	Best        float64
	LastID      uint64
}

func (l *ScoreLedger) top(ctx context.Context, op string, n int, since time.Time, excludeFlagged bool) (out []Best, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	if err = checkLimit(n); err != nil {
		return nil, err
	}

	q := l.db.WithContext(ctx).Model(&model.Score{})
	if excludeFlagged {
		q = q.Where("flagged = ?", false)
	}
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var rows []bestRow
	err = q.Select("display_name, tag, MAX(value) AS best, MAX(id) AS last_id").
		Group("display_name, tag").
		Order("best DESC, last_id ASC").
		Limit(n).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return []Best{}, nil
	}

	ids := make([]uint64, len(rows))
	for i, r := range rows {
		ids[i] = r.LastID
	}
	var latest []model.Score
	if err = l.db.WithContext(ctx).Select("id, created_at").Where("id IN ?", ids).Find(&latest).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	played := make(map[uint64]time.Time, len(latest))
	for _, s := range latest {
		played[s.ID] = s.CreatedAt
	}

	out = make([]Best, len(rows))
	for i, r := range rows {
		out[i] = Best{DisplayName: r.DisplayName, Tag: r.Tag, Value: r.Best, LastPlayed: played[r.LastID]}
	}
	return out, nil
}

// Get returns one score row.
func (l *ScoreLedger) Get(ctx context.Context, id uint64) (s model.Score, err error) {
	defer func(start time.Time) { observe("score_get", start, err) }(time.Now())

	err = l.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Score{}, ErrNotFound
	}
	if err != nil {
		return model.Score{}, fmt.Errorf("get score: %w", err)
	}
	return s, nil
}

// List returns rows newest first.
func (l *ScoreLedger) List(ctx context.Context, limit, offset int) (out []model.Score, err error) {
	defer func(start time.Time) { observe("score_list", start, err) }(time.Now())

	if err = checkLimit(limit); err != nil {
		return nil, err
	}
	out = []model.Score{}
	err = l.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(max(offset, 0)).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return out, nil
}

// Delete removes one row.
func (l *ScoreLedger) Delete(ctx context.Context, id uint64) (err error) {
	defer func(start time.Time) { observe("score_delete", start, err) }(time.Now())

	res := l.db.WithContext(ctx).Delete(&model.Score{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete score: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFlagged updates the only mutable column of a score row.
func (l *ScoreLedger) SetFlagged(ctx context.Context, id uint64, flagged bool) (err error) {
	defer func(start time.Time) { observe("score_set_flagged", start, err) }(time.Now())

	res := l.db.WithContext(ctx).Model(&model.Score{}).Where("id = ?", id).Update("flagged", flagged)
	if res.Error != nil {
		return fmt.Errorf("set flagged: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Same value on some drivers reports zero rows; confirm the row exists.
		if _, err = l.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// BestTodayForMember returns the best value recorded for the pair since
// dayStart, flagged rows included.
func (l *ScoreLedger) BestTodayForMember(ctx context.Context, displayName, tag string, dayStart time.Time) (v float64, found bool, err error) {
	defer func(start time.Time) { observe("best_today", start, err) }(time.Now())

	var best *float64
	err = l.db.WithContext(ctx).Model(&model.Score{}).
		Select("MAX(value)").
		Where("display_name = ? AND tag = ? AND created_at >= ?", displayName, tag, dayStart).
		Row().Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("best today: %w", err)
	}
	if best == nil {
		return 0, false, nil
	}
	return *best, true, nil
}

// Count returns the number of rows.
func (l *ScoreLedger) Count(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe("score_count", start, err) }(time.Now())

	err = l.db.WithContext(ctx).Model(&model.Score{}).Count(&n).Error
	return n, err
}
