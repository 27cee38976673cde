package api

import (
	"context"
	"net/http"

	"github.com/okian/podium/internal/domain/model"
)

// ProfileDependencies reads and writes player profiles.
type ProfileDependencies interface {
	Profile(ctx context.Context, playerID string) (model.Profile, error)
	SaveProfile(ctx context.Context, playerID, displayName, tag string) (model.Profile, error)
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Tag         string `json:"tag"`
}

// ProfileHandler handles /api/profile/{player_id}.
type ProfileHandler struct {
	deps ProfileDependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

// HandleGet handles GET /api/profile/{player_id}.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_get"
	p, err := h.deps.Profile(r.Context(), r.PathValue("player_id"))
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePut handles PUT /api/profile/{player_id}.
func (h *ProfileHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_put"
	var req profileRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, err := h.deps.SaveProfile(r.Context(), r.PathValue("player_id"), req.DisplayName, req.Tag)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
