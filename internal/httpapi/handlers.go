package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/internal/identity"
	"github.com/DoyleJ11/cricket-live-backend/internal/match"
	"github.com/DoyleJ11/cricket-live-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errMatchNotFound = errors.New("match not found")

// Granter records who may score a match.
type Granter interface {
	Grant(ctx context.Context, matchID, userID, role string) error
}

// Archive serves snapshots of matches no longer held in memory.
type Archive interface {
	LoadSnapshot(ctx context.Context, matchID string) (engine.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap engine.Snapshot) error
}

type playerRequest struct {
	Name    string `json:"name"`
	Captain bool   `json:"captain,omitempty"`
	Keeper  bool   `json:"keeper,omitempty"`
}

type teamRequest struct {
	Name    string          `json:"name"`
	Players []playerRequest `json:"players"`
}

type createMatchRequest struct {
	Teams         [2]teamRequest `json:"teams"`
	Overs         int            `json:"overs"`
	Innings       int            `json:"innings"`
	AllOutWickets int            `json:"allOutWickets"`
	BattingFirst  int            `json:"battingFirst"`
	Scorers       []string       `json:"scorers"`
}

type snapshotResponse struct {
	ID         string           `json:"id"`
	Version    int              `json:"version"`
	Scoreboard types.Scoreboard `json:"scoreboard"`
	Match      engine.Match     `json:"match"`
}

func newSnapshotResponse(snap engine.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:         snap.Match.ID,
		Version:    snap.Version,
		Scoreboard: types.NewScoreboard(snap),
		Match:      snap.Match,
	}
}

func CreateMatch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := identity.UserID(r.Context())

		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad json")
			return
		}
		overs := req.Overs
		if overs == 0 {
			overs = d.DefaultOvers
		}

		var teams [2]engine.Team
		for i, t := range req.Teams {
			teams[i].Name = t.Name
			for _, p := range t.Players {
				teams[i].Players = append(teams[i].Players, engine.Player{Name: p.Name, Captain: p.Captain, Keeper: p.Keeper})
			}
		}
		m, err := engine.NewMatch(uuid.NewString(), engine.Config{
			OversPerInnings: overs,
			Innings:         req.Innings,
			AllOutWickets:   req.AllOutWickets,
			BattingFirst:    req.BattingFirst,
		}, teams)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		if err := d.Grants.Grant(r.Context(), m.ID, userID, identity.RoleCreator); err != nil {
			d.Logger.Error("grant creator failed", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "failed to create match")
			return
		}
		for _, s := range req.Scorers {
			if err := d.Grants.Grant(r.Context(), m.ID, s, identity.RoleScorer); err != nil {
				d.Logger.Error("grant scorer failed", zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, "failed to create match")
				return
			}
		}

		mc, err := d.Hub.Create(r.Context(), m)
		if err != nil || mc == nil {
			writeError(w, r, http.StatusInternalServerError, "failed to create match")
			return
		}
		snap := mc.Snapshot()
		if d.Archive != nil {
			if err := d.Archive.SaveSnapshot(r.Context(), snap); err != nil {
				d.Logger.Warn("archive new match failed", zap.Error(err))
			}
		}
		writeJSON(w, http.StatusCreated, newSnapshotResponse(snap), d.Logger)
	}
}

func GetMatch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		mc, err := d.Hub.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
		if mc != nil {
			writeJSON(w, http.StatusOK, newSnapshotResponse(mc.Snapshot()), d.Logger)
			return
		}
		if d.Archive != nil {
			if snap, err := d.Archive.LoadSnapshot(r.Context(), id); err == nil {
				writeJSON(w, http.StatusOK, newSnapshotResponse(snap), d.Logger)
				return
			}
		}
		writeError(w, r, http.StatusNotFound, errMatchNotFound.Error())
	}
}

func StartMatch(d Deps) http.HandlerFunc {
	return withMachine(d, func(w http.ResponseWriter, r *http.Request, mc *match.Machine, userID string) {
		var req types.StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad json")
			return
		}
		snap, err := mc.Start(r.Context(), req.Options(), userID)
		if err != nil {
			writeMatchError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSnapshotResponse(snap), d.Logger)
	})
}

func SubmitBall(d Deps) http.HandlerFunc {
	return withMachine(d, func(w http.ResponseWriter, r *http.Request, mc *match.Machine, userID string) {
		var req types.BallSubmission
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad json")
			return
		}
		if req.MatchID != "" && req.MatchID != mc.ID() {
			writeError(w, r, http.StatusBadRequest, "matchId does not match the url")
			return
		}
		ev, err := req.ToBallEvent()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		snap, err := mc.Submit(r.Context(), ev, userID)
		if err != nil {
			writeMatchError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSnapshotResponse(snap), d.Logger)
	})
}

func ChangeBowler(d Deps) http.HandlerFunc {
	return withMachine(d, func(w http.ResponseWriter, r *http.Request, mc *match.Machine, userID string) {
		var req types.BowlerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Bowler == "" {
			writeError(w, r, http.StatusBadRequest, "bowler is required")
			return
		}
		snap, err := mc.ChangeBowler(r.Context(), req.Bowler, userID)
		if err != nil {
			writeMatchError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSnapshotResponse(snap), d.Logger)
	})
}

type machineHandler func(w http.ResponseWriter, r *http.Request, mc *match.Machine, userID string)

func withMachine(d Deps, next machineHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := identity.UserID(r.Context())
		mc, err := d.Hub.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
		if mc == nil {
			// Completed matches leave the hub once archived.
			if d.Archive != nil {
				if snap, err := d.Archive.LoadSnapshot(r.Context(), chi.URLParam(r, "id")); err == nil && snap.Match.Status == engine.StatusCompleted {
					writeMatchError(w, r, match.ErrMatchClosed)
					return
				}
			}
			writeError(w, r, http.StatusNotFound, errMatchNotFound.Error())
			return
		}
		next(w, r, mc, userID)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeMatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrRuleViolation):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, match.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, match.ErrBusy):
		w.Header().Set("Retry-After", strconv.Itoa(1))
		writeError(w, r, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, match.ErrMatchClosed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, match.ErrStopped):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := map[string]string{"error": message}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		body["requestId"] = reqID
	}
	writeJSON(w, status, body, nil)
}
