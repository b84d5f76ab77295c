// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fedbench/internal/adapters/http/swagger"
	"github.com/okian/fedbench/internal/adapters/repository"
	service "github.com/okian/fedbench/internal/app"
	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/okian/fedbench/internal/domain/objective"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	CreateRun(ctx context.Context, s service.Settings) (service.Summary, error)
	ListRuns(ctx context.Context) ([]service.Summary, error)
	GetRun(ctx context.Context, id string) (service.Detail, error)
	Observe(ctx context.Context, id, submissionKey string, rec objective.Record) (service.Observation, error)
	DeleteRun(ctx context.Context, id string) error
}

// Server wires HTTP routes for the run API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	runsHandler   *RunsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		runsHandler:   NewRunsHandler(deps),
	}
}

// Routes returns the router serving every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	swagger.Register(r)

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.runsHandler.HandleCreate, "runs"))
		r.Get("/", MetricsMiddleware(s.runsHandler.HandleList, "runs"))

		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", MetricsMiddleware(s.runsHandler.HandleGet, "run"))
			r.Delete("/", MetricsMiddleware(s.runsHandler.HandleDelete, "run"))
			r.Post("/objectives", MetricsMiddleware(s.runsHandler.HandleObserve, "objectives"))
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

// writeServiceError maps service and domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, convergence.ErrStopped):
		writeError(w, http.StatusConflict, "stopped", err)
	case errors.Is(err, repository.ErrCapacity):
		writeError(w, http.StatusTooManyRequests, "capacity", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, objective.ErrMissingKey),
		errors.Is(err, objective.ErrNonFinite),
		errors.Is(err, convergence.ErrZeroStartObjective),
		errors.Is(err, service.ErrInvalidSettings),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "invalid", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
