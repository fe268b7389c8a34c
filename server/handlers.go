package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/persistence"
	"github.com/wfunc/getroasted/services"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	userIDHeader     = "X-User-ID"
)

type createBattleRequest struct {
	Title           string            `json:"title"`
	Type            models.Visibility `json:"type"`
	RoundCount      int               `json:"round_count"`
	TimePerTurn     int               `json:"time_per_turn"`
	AllowSpectators bool              `json:"allow_spectators"`
	CreatorID       string            `json:"creator_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Step  string `json:"step,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var cascade *services.CascadeError
	switch {
	case errors.Is(err, persistence.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidBattle):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.As(err, &cascade):
		resp.Step = cascade.Step
	}
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("http: %v", err)
	}
	writeJSON(w, status, resp)
}

// requestUser reads the caller from the X-User-ID header, falling back to ?user_id=.
func requestUser(r *http.Request) string {
	if id := r.Header.Get(userIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *BattleServer) createBattle(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}
	if req.CreatorID == "" {
		req.CreatorID = requestUser(r)
	}

	b := &models.Battle{
		Title:           req.Title,
		Type:            req.Type,
		RoundCount:      req.RoundCount,
		TimePerTurn:     req.TimePerTurn,
		AllowSpectators: req.AllowSpectators,
		CreatorID:       req.CreatorID,
	}
	if err := s.battleService.CreateBattle(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *BattleServer) getBattle(w http.ResponseWriter, r *http.Request) {
	b, err := s.battleService.GetBattle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *BattleServer) deleteBattle(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "id")
	if err := s.battleService.DeleteBattle(r.Context(), battleID, requestUser(r)); err != nil {
		writeError(w, err)
		return
	}
	s.arenaManager.Remove(battleID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *BattleServer) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.battleService.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *BattleServer) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.battleService.Leaderboard(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *BattleServer) getNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := s.battleService.Notifications(r.Context(), chi.URLParam(r, "id"), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}
