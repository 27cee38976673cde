package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/podium/pkg/logger"
)

// ErrMismatch is returned when the board disagrees with accepted runs.
var ErrMismatch = errors.New("board mismatch")

// fetchBoard retrieves the top of today's board.
func fetchBoard(ctx context.Context, cfg *Config, stats *Stats) ([]Entry, error) {
	var board []Entry
	url := fmt.Sprintf("%s/api/leaderboard/daily?limit=%d", cfg.BaseURL, cfg.TopN)
	if err := newHTTPClient(cfg.Timeout).getJSON(ctx, url, &board); err != nil {
		return nil, err
	}
	stats.BoardEntries = len(board)
	return board, nil
}

// verifyBoard checks the board against the best accepted value per member:
// values are non-increasing, each row holds that member's best, and the
// value sequence matches the expected top.
func verifyBoard(ctx context.Context, board []Entry, best map[string]float64) error {
	log := logger.GetOrNop()

	expected := make([]float64, 0, len(best))
	for _, v := range best {
		expected = append(expected, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(expected)))

	if len(board) > len(expected) {
		return fmt.Errorf("%w: board has %d rows, only %d members were accepted", ErrMismatch, len(board), len(expected))
	}
	if len(board) == 0 && len(expected) > 0 {
		return fmt.Errorf("%w: board is empty after %d accepted members", ErrMismatch, len(expected))
	}

	for i, e := range board {
		if i > 0 && e.Value > board[i-1].Value {
			return fmt.Errorf("%w: row %d (%.3f) beats row %d (%.3f)", ErrMismatch, i+1, e.Value, i, board[i-1].Value)
		}
		v, ok := best[e.DisplayName]
		if !ok {
			return fmt.Errorf("%w: %q is on the board without an accepted run", ErrMismatch, e.DisplayName)
		}
		if v != e.Value {
			return fmt.Errorf("%w: %q shows %.3f, best accepted is %.3f", ErrMismatch, e.DisplayName, e.Value, v)
		}
		if e.Value != expected[i] {
			return fmt.Errorf("%w: row %d is %.3f, expected %.3f", ErrMismatch, i+1, e.Value, expected[i])
		}
		if e.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrMismatch, i+1, e.Rank)
		}
	}

	if len(board) > 0 {
		log.Info(ctx, "board verified",
			logger.Int("rows", len(board)),
			logger.String("leader", board[0].DisplayName),
			logger.Float64("leaderValue", board[0].Value))
	}
	return nil
}
