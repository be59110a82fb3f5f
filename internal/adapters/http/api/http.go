// Package api exposes the scoring service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/cigame/internal/adapters/http/swagger"
	service "github.com/okian/cigame/internal/app"
	"github.com/okian/cigame/internal/config"
	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/leaderboard"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
	"github.com/okian/cigame/pkg/logger"
	"github.com/okian/cigame/pkg/metrics"
)

const (
	defaultMaxLimit       = 100
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 1 << 20
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	// Submit queues a build. See service.Service.Submit for the errors.
	Submit(ctx context.Context, b *model.Build) error
	ScoreCard(ctx context.Context, project string, number int) (rules.Report, error)

	Games() ([]game.Game, error)
	GameSettings() (config.GameSettings, error)
	ConfigureGames(ctx context.Context, gs config.GameSettings) (service.GamesUpdate, error)

	Leaderboard(ctx context.Context, gameID string, limit int) (game.Game, []leaderboard.Row, error)
	ResetGame(ctx context.Context, gameID string) (int, error)

	UserScores(ctx context.Context, id string) (service.UserScores, error)
	UpdateProfile(ctx context.Context, id string, p service.Profile) (model.User, error)

	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the scoring API.
type Server struct {
	deps     Dependencies
	auth     Authorizer
	maxLimit int
	origins  []string
	timeout  time.Duration
	logger   logger.Logger
}

// NewServer creates an API server. Without an authorizer the administrative
// routes reject every request.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		auth:     NewTokenAuthorizer(""),
		maxLimit: defaultMaxLimit,
		origins:  []string{"*"},
		timeout:  defaultRequestTimeout,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the handler serving every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	swagger.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.timeout))

		r.Get("/stats", s.handleStats)
		r.Post("/builds", s.handlePostBuild)
		r.Get("/projects/{project}/builds/{number}/scorecard", s.handleGetScoreCard)

		r.Get("/games", s.handleGetGames)
		r.Get("/leaderboard", s.handleGetLeaderboard)
		r.Get("/leaderboard/{gameID}", s.handleGetLeaderboard)
		r.Get("/users/{userID}/scores", s.handleGetUserScores)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Put("/games", s.handlePutGames)
			r.Post("/leaderboard/{gameID}/reset", s.handleResetGame)
			r.Put("/users/{userID}/profile", s.handlePutProfile)
		})
	})
	return r
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
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service error kinds to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidBuild), errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, service.ErrInvalidGames):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrUnknownGame):
		writeError(w, http.StatusNotFound, "unknown_game", err)
	case errors.Is(err, service.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown_user", err)
	case errors.Is(err, service.ErrNoScoreCard):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

// pathParam returns a decoded URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
