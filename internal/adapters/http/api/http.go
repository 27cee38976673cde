// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Dependencies required by the public HTTP handlers. Using an interface
// bundle keeps the handler layer loosely coupled to implementations.
type Dependencies interface {
	Submit(ctx context.Context, in model.Submission) (types.SubmitResult, error)
	DailyLeaderboard(ctx context.Context, n int) ([]Entry, error)
	AllTimeLeaderboard(ctx context.Context, n int) ([]Entry, error)
	CheckReward(ctx context.Context, playerID string, value float64) (types.RewardResult, error)
	Profile(ctx context.Context, playerID string) (model.Profile, error)
	SaveProfile(ctx context.Context, playerID, displayName, tag string) (model.Profile, error)
}

// AdminDependencies are the operations behind /admin.
type AdminDependencies interface {
	ListScores(ctx context.Context, limit, offset int) ([]model.Score, error)
	DeleteScore(ctx context.Context, id uint64) error
	UnflagScore(ctx context.Context, id uint64) error
	ListFlags(ctx context.Context, limit int) ([]model.Flag, error)
	ClearFlags(ctx context.Context, fingerprint string) (int64, error)
	ListTiers(ctx context.Context) ([]model.RewardTier, error)
	CreateTier(ctx context.Context, in service.TierInput) (model.RewardTier, error)
	UpdateTier(ctx context.Context, id uint64, in service.TierInput) (model.RewardTier, error)
	DeleteTier(ctx context.Context, id uint64) error
	ResetClaims(ctx context.Context, id uint64) (int64, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	rewardsHandler     *RewardsHandler
	profileHandler     *ProfileHandler
	adminHandler       *AdminHandler
	adminSecret        string
	deduper            dedupe.Deduper
	trustedProxies     []netip.Prefix
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAdminSecret sets the shared secret of the admin routes. Empty disables
// them.
func WithAdminSecret(secret string) Option {
	return func(s *Server) { s.adminSecret = secret }
}

// WithDeduper enables Idempotency-Key handling on score submissions.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Server) { s.deduper = d }
}

// WithTrustedProxies lists the peers whose X-Forwarded-For header is believed
// when deriving the client fingerprint.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(s *Server) { s.trustedProxies = prefixes }
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, admin AdminDependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.scoresHandler = NewScoresHandler(deps, s.deduper, s.trustedProxies)
	s.leaderboardHandler = NewLeaderboardHandler(deps)
	s.rewardsHandler = NewRewardsHandler(deps)
	s.profileHandler = NewProfileHandler(deps)
	s.adminHandler = NewAdminHandler(admin)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/scores", MetricsMiddleware(s.scoresHandler.HandleSubmit, "scores"))
	mux.HandleFunc("GET /api/leaderboard/daily", MetricsMiddleware(s.leaderboardHandler.HandleDaily, "leaderboard_daily"))
	mux.HandleFunc("GET /api/leaderboard/alltime", MetricsMiddleware(s.leaderboardHandler.HandleAllTime, "leaderboard_alltime"))
	mux.HandleFunc("POST /api/rewards/check", MetricsMiddleware(s.rewardsHandler.HandleCheck, "rewards_check"))
	mux.HandleFunc("GET /api/profile/{player_id}", MetricsMiddleware(s.profileHandler.HandleGet, "profile_get"))
	mux.HandleFunc("PUT /api/profile/{player_id}", MetricsMiddleware(s.profileHandler.HandlePut, "profile_put"))

	admin := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return MetricsMiddleware(AdminMiddleware(h, s.adminSecret), endpoint)
	}
	mux.HandleFunc("GET /admin/scores", admin(s.adminHandler.HandleListScores, "admin_scores"))
	mux.HandleFunc("DELETE /admin/scores/{id}", admin(s.adminHandler.HandleDeleteScore, "admin_scores"))
	mux.HandleFunc("POST /admin/scores/{id}/unflag", admin(s.adminHandler.HandleUnflagScore, "admin_scores"))
	mux.HandleFunc("GET /admin/flags", admin(s.adminHandler.HandleListFlags, "admin_flags"))
	mux.HandleFunc("DELETE /admin/flags", admin(s.adminHandler.HandleClearFlags, "admin_flags"))
	mux.HandleFunc("GET /admin/rewards", admin(s.adminHandler.HandleListTiers, "admin_rewards"))
	mux.HandleFunc("POST /admin/rewards", admin(s.adminHandler.HandleCreateTier, "admin_rewards"))
	mux.HandleFunc("PUT /admin/rewards/{id}", admin(s.adminHandler.HandleUpdateTier, "admin_rewards"))
	mux.HandleFunc("DELETE /admin/rewards/{id}", admin(s.adminHandler.HandleDeleteTier, "admin_rewards"))
	mux.HandleFunc("POST /admin/rewards/{id}/reset", admin(s.adminHandler.HandleResetClaims, "admin_rewards"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service sentinel kinds to statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		logger.GetOrNop().Named("api").Error(ctx, "request failed",
			logger.String("requestID", RequestIDFrom(ctx)),
			logger.Error(Wrap(op, err)))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewKindf(op, ErrBadRequest, "invalid JSON body")
	}
	return nil
}

// pathID parses the {id} path segment.
func pathID(r *http.Request, op string) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, NewKindf(op, ErrBadRequest, "invalid id")
	}
	return id, nil
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// clientOrigin returns the peer host. When the peer is a trusted proxy the
// X-Forwarded-For chain is walked right to left and the first untrusted hop
// is the origin.
func clientOrigin(r *http.Request, trusted []netip.Prefix) string {
	origin := remoteHost(r)
	if !isTrusted(origin, trusted) {
		return origin
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		origin = hop
		if !isTrusted(hop, trusted) {
			break
		}
	}
	return origin
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// fingerprint derives the request fingerprint. It is an abuse signal only.
func fingerprint(r *http.Request, trusted []netip.Prefix) string {
	return identity.Fingerprint(clientOrigin(r, trusted))
}
