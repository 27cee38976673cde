package api

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
)

// SubmitDependencies is the submission pipeline.
type SubmitDependencies interface {
	Submit(ctx context.Context, in model.Submission) (types.SubmitResult, error)
}

type submitRequest struct {
	PlayerID    string   `json:"player_id"`
	DisplayName string   `json:"display_name"`
	Tag         string   `json:"tag"`
	Value       *float64 `json:"value"`
	Victory     bool     `json:"victory"`
}

const idempotencyHeader = "Idempotency-Key"

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps    SubmitDependencies
	deduper dedupe.Deduper
	trusted []netip.Prefix
}

// NewScoresHandler creates a new scores handler. A nil deduper ignores
// Idempotency-Key. X-Forwarded-For is only read from trusted peers.
func NewScoresHandler(deps SubmitDependencies, deduper dedupe.Deduper, trusted []netip.Prefix) *ScoresHandler {
	return &ScoresHandler{deps: deps, deduper: deduper, trusted: trusted}
}

// HandleSubmit handles POST /api/scores.
func (h *ScoresHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	var req submitRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "validation_error", NewKindf(op, ErrBadRequest, "value is required"))
		return
	}
	fp := fingerprint(r, h.trusted)

	// Keys are scoped per origin so clients cannot collide with each other.
	var key string
	if h.deduper != nil {
		if k := r.Header.Get(idempotencyHeader); k != "" {
			key = fp + ":" + k
			if h.deduper.SeenAndRecord(r.Context(), key) {
				writeError(w, http.StatusConflict, "duplicate_submission", NewKindf(op, ErrDuplicate, "%s already used", idempotencyHeader))
				return
			}
		}
	}

	res, err := h.deps.Submit(r.Context(), model.Submission{
		PlayerID:    req.PlayerID,
		DisplayName: req.DisplayName,
		Tag:         req.Tag,
		Value:       *req.Value,
		Victory:     req.Victory,
		Fingerprint: fp,
	})
	if err != nil {
		if key != "" {
			h.deduper.Unrecord(r.Context(), key)
		}
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
