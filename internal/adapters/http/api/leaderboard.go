package api

import (
	"context"
	"net/http"
)

// DefaultLeaderboardLimit is used when ?limit is absent.
const DefaultLeaderboardLimit = 40

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	DailyLeaderboard(ctx context.Context, n int) ([]Entry, error)
	AllTimeLeaderboard(ctx context.Context, n int) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleDaily handles GET /api/leaderboard/daily?limit=N.
func (h *LeaderboardHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.leaderboard_daily", h.deps.DailyLeaderboard)
}

// HandleAllTime handles GET /api/leaderboard/alltime?limit=N.
func (h *LeaderboardHandler) HandleAllTime(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.leaderboard_alltime", h.deps.AllTimeLeaderboard)
}

func (h *LeaderboardHandler) serve(w http.ResponseWriter, r *http.Request, op string, top func(context.Context, int) ([]Entry, error)) {
	n, ok := queryInt(r, "limit", DefaultLeaderboardLimit)
	if !ok || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKindf(op, ErrBadRequest, "limit must be a positive integer"))
		return
	}
	// The service clamps to the configured board size.
	entries, err := top(r.Context(), n)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
