package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/fedbench/internal/app"
	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/okian/fedbench/internal/domain/objective"
)

// IdempotencyHeader carries an optional per-submission key.
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

// createRunRequest mirrors the body of POST /runs.
type createRunRequest struct {
	Patience     int     `json:"patience"`
	Eps          float64 `json:"eps"`
	KeyToMonitor string  `json:"key_to_monitor"`
	MaxRuns      int     `json:"max_runs"`
	Timeout      string  `json:"timeout"`
}

func (c createRunRequest) settings() (service.Settings, error) {
	s := service.Settings{
		Patience:     c.Patience,
		Eps:          c.Eps,
		KeyToMonitor: strings.TrimSpace(c.KeyToMonitor),
		MaxRuns:      c.MaxRuns,
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return service.Settings{}, fmt.Errorf("%w: %w", ErrBadRequest, ErrBadTimeout)
		}
		s.Timeout = d
	}
	return s, nil
}

type observeResponse struct {
	Stop      bool               `json:"stop"`
	Progress  float64            `json:"progress"`
	Reason    convergence.Reason `json:"reason"`
	Round     int                `json:"round"`
	Duplicate bool               `json:"duplicate"`
}

// RunsHandler handles the /runs resource.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleCreate handles POST /runs.
func (h *RunsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err)
			return
		}
	}
	settings, err := req.settings()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	run, err := h.deps.CreateRun(r.Context(), settings)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// HandleList handles GET /runs.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.deps.ListRuns(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []service.Summary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGet handles GET /runs/{runID}.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleObserve handles POST /runs/{runID}/objectives. The body is an
// objective record such as {"value": 0.42, "average_test_loss": 0.7}.
func (h *RunsHandler) HandleObserve(w http.ResponseWriter, r *http.Request) {
	var rec objective.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	obs, err := h.deps.Observe(r.Context(), chi.URLParam(r, "runID"), key, rec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, observeResponse{
		Stop:      obs.Decision.Stop,
		Progress:  obs.Decision.Progress,
		Reason:    obs.Decision.Reason,
		Round:     obs.Round,
		Duplicate: obs.Duplicate,
	})
}

// HandleDelete handles DELETE /runs/{runID}.
func (h *RunsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteRun(r.Context(), chi.URLParam(r, "runID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
