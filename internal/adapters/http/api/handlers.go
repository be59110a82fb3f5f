package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/cigame/internal/app"
	"github.com/okian/cigame/internal/config"
	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/leaderboard"
	"github.com/okian/cigame/internal/domain/model"
)

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.GetStats())
}

type ackResponse struct {
	Status    string `json:"status"`
	Build     string `json:"build"`
	Duplicate bool   `json:"duplicate"`
}

// handlePostBuild handles POST /builds.
func (s *Server) handlePostBuild(w http.ResponseWriter, r *http.Request) {
	var b model.Build
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	err := s.deps.Submit(r.Context(), &b)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Build: b.Key()})
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Build: b.Key(), Duplicate: true})
	default:
		writeServiceError(w, err)
	}
}

// handleGetScoreCard handles GET /projects/{project}/builds/{number}/scorecard.
func (s *Server) handleGetScoreCard(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(pathParam(r, "number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: build number must be a positive integer", ErrBadRequest))
		return
	}
	card, err := s.deps.ScoreCard(r.Context(), pathParam(r, "project"), number)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

type gameView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Default  bool     `json:"default"`
	Jobs     string   `json:"jobs,omitempty"`
	Projects []string `json:"projects,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func viewOf(g game.Game) gameView {
	v := gameView{ID: g.ID, Name: g.Name, Default: g.IsDefault(), Projects: g.Projects}
	if !g.IsDefault() {
		v.Jobs = g.Definition().Jobs
	}
	if err := g.ScopeError(); err != nil {
		v.Error = err.Error()
	}
	return v
}

type gamesResponse struct {
	NamesCaseSensitive bool       `json:"names_case_sensitive"`
	Games              []gameView `json:"games"`
}

// handleGetGames handles GET /games.
func (s *Server) handleGetGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.deps.Games()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	settings, err := s.deps.GameSettings()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := gamesResponse{NamesCaseSensitive: settings.NamesCaseSensitive, Games: make([]gameView, len(games))}
	for i, g := range games {
		resp.Games[i] = viewOf(g)
	}
	writeJSON(w, http.StatusOK, resp)
}

type gamesRequest struct {
	NamesCaseSensitive *bool             `json:"names_case_sensitive"`
	CustomGames        []game.Definition `json:"custom_games"`
}

type gamesUpdateResponse struct {
	NamesCaseSensitive bool              `json:"names_case_sensitive"`
	CustomGames        []game.Definition `json:"custom_games"`
	ScopeErrors        []string          `json:"scope_errors,omitempty"`
	Pruned             int               `json:"pruned"`
}

// handlePutGames handles PUT /games. The body replaces the whole custom
// game set; an omitted names_case_sensitive keeps the current policy.
func (s *Server) handlePutGames(w http.ResponseWriter, r *http.Request) {
	var req gamesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	current, err := s.deps.GameSettings()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	gs := config.GameSettings{NamesCaseSensitive: current.NamesCaseSensitive, CustomGames: req.CustomGames}
	if req.NamesCaseSensitive != nil {
		gs.NamesCaseSensitive = *req.NamesCaseSensitive
	}

	up, err := s.deps.ConfigureGames(r.Context(), gs)
	switch {
	case errors.Is(err, config.ErrSaveSettings):
		writeError(w, http.StatusInternalServerError, "settings_not_saved", fmt.Errorf("%w: %w", ErrSettingsUnsaved, err))
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}

	resp := gamesUpdateResponse{
		NamesCaseSensitive: up.Settings.NamesCaseSensitive,
		CustomGames:        up.Settings.CustomGames,
		Pruned:             up.Pruned,
	}
	if resp.CustomGames == nil {
		resp.CustomGames = []game.Definition{}
	}
	for _, e := range up.ScopeErrors {
		resp.ScopeErrors = append(resp.ScopeErrors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

type leaderboardResponse struct {
	Game    gameView          `json:"game"`
	Entries []leaderboard.Row `json:"entries"`
}

// handleGetLeaderboard handles GET /leaderboard and GET /leaderboard/{gameID}.
// limit defaults to the configured maximum.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		if n > s.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: max %d", ErrLimitExceeded, s.maxLimit))
			return
		}
		limit = n
	}

	g, rows, err := s.deps.Leaderboard(r.Context(), pathParam(r, "gameID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []leaderboard.Row{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Game: viewOf(g), Entries: rows})
}

// handleResetGame handles POST /leaderboard/{gameID}/reset.
func (s *Server) handleResetGame(w http.ResponseWriter, r *http.Request) {
	gameID := pathParam(r, "gameID")
	n, err := s.deps.ResetGame(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game": gameID, "reset": n})
}

// handleGetUserScores handles GET /users/{userID}/scores.
func (s *Server) handleGetUserScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.deps.UserScores(r.Context(), pathParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

type userView struct {
	ID            string `json:"id"`
	Description   string `json:"description,omitempty"`
	Participating bool   `json:"participating"`
}

// handlePutProfile handles PUT /users/{userID}/profile.
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p service.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	u, err := s.deps.UpdateProfile(r.Context(), pathParam(r, "userID"), p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userView{ID: u.ID, Description: u.Description, Participating: u.Participating()})
}
