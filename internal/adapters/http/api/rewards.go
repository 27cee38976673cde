package api

import (
	"context"
	"net/http"

	"github.com/okian/podium/internal/domain/types"
)

// RewardDependencies is the reward arbitration entry point.
type RewardDependencies interface {
	CheckReward(ctx context.Context, playerID string, value float64) (types.RewardResult, error)
}

type rewardCheckRequest struct {
	PlayerID string   `json:"player_id"`
	Value    *float64 `json:"value"`
}

// RewardsHandler handles reward checks.
type RewardsHandler struct {
	deps RewardDependencies
}

// NewRewardsHandler creates a new rewards handler.
func NewRewardsHandler(deps RewardDependencies) *RewardsHandler {
	return &RewardsHandler{deps: deps}
}

// HandleCheck handles POST /api/rewards/check. Responses carry secret codes
// and must not be cached.
func (h *RewardsHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.rewards_check"
	w.Header().Set("Cache-Control", "no-store")
	var req rewardCheckRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "validation_error", NewKindf(op, ErrBadRequest, "value is required"))
		return
	}
	res, err := h.deps.CheckReward(r.Context(), req.PlayerID, *req.Value)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
