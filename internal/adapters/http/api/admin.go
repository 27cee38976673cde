package api

import (
	"net/http"

	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/model"
)

type tierRequest struct {
	Threshold   *float64 `json:"threshold"`
	Message     string   `json:"message"`
	SecretCode  string   `json:"secret_code"`
	Active      *bool    `json:"active"`
	SingleClaim *bool    `json:"single_claim"`
}

func (t tierRequest) input() service.TierInput {
	in := service.TierInput{
		Message:     t.Message,
		SecretCode:  t.SecretCode,
		Active:      t.Active,
		SingleClaim: t.SingleClaim,
	}
	if t.Threshold != nil {
		in.Threshold = *t.Threshold
	}
	return in
}

type countResponse struct {
	Removed int64 `json:"removed"`
}

// AdminHandler serves the moderation and reward management routes.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleListScores handles GET /admin/scores?limit=&offset=.
func (h *AdminHandler) HandleListScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_list_scores"
	limit, ok1 := queryInt(r, "limit", 0)
	offset, ok2 := queryInt(r, "offset", 0)
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKindf(op, ErrBadRequest, "limit and offset must be non-negative integers"))
		return
	}
	rows, err := h.deps.ListScores(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if rows == nil {
		rows = []model.Score{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleDeleteScore handles DELETE /admin/scores/{id}.
func (h *AdminHandler) HandleDeleteScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_delete_score"
	id, err := pathID(r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.DeleteScore(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnflagScore handles POST /admin/scores/{id}/unflag.
func (h *AdminHandler) HandleUnflagScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_unflag_score"
	id, err := pathID(r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.UnflagScore(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListFlags handles GET /admin/flags?limit=.
func (h *AdminHandler) HandleListFlags(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_list_flags"
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKindf(op, ErrBadRequest, "limit must be a non-negative integer"))
		return
	}
	flags, err := h.deps.ListFlags(r.Context(), limit)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if flags == nil {
		flags = []model.Flag{}
	}
	writeJSON(w, http.StatusOK, flags)
}

// HandleClearFlags handles DELETE /admin/flags[?fingerprint=].
func (h *AdminHandler) HandleClearFlags(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_clear_flags"
	n, err := h.deps.ClearFlags(r.Context(), r.URL.Query().Get("fingerprint"))
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Removed: n})
}

// HandleListTiers handles GET /admin/rewards.
func (h *AdminHandler) HandleListTiers(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_list_tiers"
	tiers, err := h.deps.ListTiers(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if tiers == nil {
		tiers = []model.RewardTier{}
	}
	writeJSON(w, http.StatusOK, tiers)
}

// HandleCreateTier handles POST /admin/rewards.
func (h *AdminHandler) HandleCreateTier(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_create_tier"
	var req tierRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Threshold == nil {
		writeError(w, http.StatusBadRequest, "validation_error", NewKindf(op, ErrBadRequest, "threshold is required"))
		return
	}
	tier, err := h.deps.CreateTier(r.Context(), req.input())
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, tier)
}

// HandleUpdateTier handles PUT /admin/rewards/{id}.
func (h *AdminHandler) HandleUpdateTier(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_update_tier"
	id, err := pathID(r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req tierRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Threshold == nil {
		writeError(w, http.StatusBadRequest, "validation_error", NewKindf(op, ErrBadRequest, "threshold is required"))
		return
	}
	tier, err := h.deps.UpdateTier(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, tier)
}

// HandleDeleteTier handles DELETE /admin/rewards/{id}.
func (h *AdminHandler) HandleDeleteTier(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_delete_tier"
	id, err := pathID(r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.DeleteTier(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetClaims handles POST /admin/rewards/{id}/reset.
func (h *AdminHandler) HandleResetClaims(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_reset_claims"
	id, err := pathID(r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	n, err := h.deps.ResetClaims(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Removed: n})
}
