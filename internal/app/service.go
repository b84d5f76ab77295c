// Package service provides the run service behind the HTTP API: it creates
// convergence trackers, feeds them objective records and reports their state.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fedbench/internal/adapters/repository"
	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/okian/fedbench/internal/domain/dedupe"
	"github.com/okian/fedbench/internal/domain/objective"
	"github.com/okian/fedbench/pkg/logger"
	"github.com/okian/fedbench/pkg/metrics"
)

// Settings configure the stopping policy of one run. Zero fields take the
// service defaults.
type Settings struct {
	Patience     int           `json:"patience,omitempty"`
	Eps          float64       `json:"eps,omitempty"`
	KeyToMonitor string        `json:"key_to_monitor,omitempty"`
	MaxRuns      int           `json:"max_runs,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
}

// Summary describes a run without its history.
type Summary struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Settings  Settings           `json:"settings"`
	Rounds    int                `json:"rounds"`
	Best      float64            `json:"best"`
	Stopped   bool               `json:"stopped"`
	Reason    convergence.Reason `json:"reason"`
	Progress  float64            `json:"progress"`
}

// Detail is a Summary plus the full objective history.
type Detail struct {
	Summary
	History objective.History `json:"history"`
}

// Observation is the outcome of one submitted record.
type Observation struct {
	Decision  convergence.Decision `json:"decision"`
	Round     int                  `json:"round"`
	Duplicate bool                 `json:"duplicate"`
}

// Service implements the API dependencies for monitored runs.
type Service struct {
	mu sync.RWMutex

	runs    repository.Store
	deduper dedupe.Deduper

	defaults   Settings
	capacity   int
	dedupeSize int

	started bool
	now     func() time.Time
	newID   func() string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDefaults sets the settings used for zero fields of new runs.
func WithDefaults(d Settings) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithCapacity bounds the number of stored runs.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithDedupeSize sets how many submission keys are remembered.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithStore replaces the default in-memory run store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.runs = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		defaults: Settings{
			Patience:     convergence.DefaultPatience,
			Eps:          convergence.DefaultEps,
			KeyToMonitor: objective.DefaultKey,
		},
		capacity:   1024,
		dedupeSize: 50_000,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.runs == nil {
		s.runs = repository.NewMemoryStore(ctx, repository.WithCapacity(s.capacity))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.started = true
	s.logger.Info(ctx, "run service started",
		logger.Int("capacity", s.capacity),
		logger.Int("patience", s.defaults.Patience),
		logger.Float64("eps", s.defaults.Eps),
		logger.String("key", s.defaults.KeyToMonitor),
	)
	return nil
}

// Stop shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if closer, ok := s.runs.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.started = false
	s.logger.Info(context.Background(), "run service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) resolve(in Settings) (Settings, error) {
	out := in
	if out.Patience == 0 {
		out.Patience = s.defaults.Patience
	}
	if out.Eps == 0 {
		out.Eps = s.defaults.Eps
	}
	if out.KeyToMonitor == "" {
		out.KeyToMonitor = s.defaults.KeyToMonitor
	}
	if out.MaxRuns == 0 {
		out.MaxRuns = s.defaults.MaxRuns
	}
	if out.Timeout == 0 {
		out.Timeout = s.defaults.Timeout
	}
	switch {
	case out.Patience < 0:
		return Settings{}, fmt.Errorf("%w: patience %d", ErrInvalidSettings, out.Patience)
	case out.Eps <= 0 || out.Eps >= 1:
		return Settings{}, fmt.Errorf("%w: eps %v not in (0,1)", ErrInvalidSettings, out.Eps)
	case out.MaxRuns < 0:
		return Settings{}, fmt.Errorf("%w: max_runs %d", ErrInvalidSettings, out.MaxRuns)
	case out.Timeout < 0:
		return Settings{}, fmt.Errorf("%w: timeout %s", ErrInvalidSettings, out.Timeout)
	}
	return out, nil
}

// CreateRun starts monitoring a new run.
func (s *Service) CreateRun(ctx context.Context, in Settings) (Summary, error) {
	if err := s.ready(); err != nil {
		return Summary{}, err
	}
	set, err := s.resolve(in)
	if err != nil {
		return Summary{}, err
	}

	id := s.newID()
	log := s.logger.With(logger.String("run", id))
	checker := convergence.NewSufficientProgress(
		convergence.WithPatience(set.Patience),
		convergence.WithEps(set.Eps),
		convergence.WithKeyToMonitor(set.KeyToMonitor),
		convergence.WithLogger(log),
	)
	tracker := convergence.NewTracker(checker, set.KeyToMonitor,
		convergence.WithMaxRuns(set.MaxRuns),
		convergence.WithTimeout(set.Timeout),
		convergence.WithClock(s.now),
		convergence.WithTrackerLogger(log),
	)
	run := &repository.Run{
		ID:        id,
		CreatedAt: s.now(),
		Patience:  set.Patience,
		Eps:       set.Eps,
		Key:       set.KeyToMonitor,
		MaxRuns:   set.MaxRuns,
		Timeout:   set.Timeout,
		Tracker:   tracker,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return Summary{}, err
	}
	metrics.RecordRunCreated()
	log.Info(ctx, "run created", logger.Int("patience", set.Patience), logger.Float64("eps", set.Eps))
	return summarize(run, tracker.Snapshot()), nil
}

func summarize(r *repository.Run, st convergence.State) Summary {
	return Summary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Settings: Settings{
			Patience:     r.Patience,
			Eps:          r.Eps,
			KeyToMonitor: r.Key,
			MaxRuns:      r.MaxRuns,
			Timeout:      r.Timeout,
		},
		Rounds:   st.Rounds,
		Best:     st.Best,
		Stopped:  st.Stopped,
		Reason:   st.Last.Reason,
		Progress: st.Last.Progress,
	}
}

// ListRuns returns every run summary ordered by creation time.
func (s *Service) ListRuns(ctx context.Context) ([]Summary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	runs, err := s.runs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(runs))
	for i, r := range runs {
		out[i] = summarize(r, r.Tracker.Snapshot())
	}
	return out, nil
}

// GetRun returns a run with its history.
func (s *Service) GetRun(ctx context.Context, id string) (Detail, error) {
	if err := s.ready(); err != nil {
		return Detail{}, err
	}
	r, err := s.runs.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	st := r.Tracker.Snapshot()
	return Detail{Summary: summarize(r, st), History: st.History}, nil
}

// Observe feeds rec to the run's tracker. A non-empty submissionKey makes the
// call idempotent: a repeated key returns the current decision unchanged.
func (s *Service) Observe(ctx context.Context, id, submissionKey string, rec objective.Record) (Observation, error) {
	if err := s.ready(); err != nil {
		return Observation{}, err
	}
	r, err := s.runs.Get(ctx, id)
	if err != nil {
		return Observation{}, err
	}
	if err := rec.Validate(r.Tracker.Key()); err != nil {
		return Observation{}, err
	}

	if submissionKey != "" {
		key := id + "/" + submissionKey
		if s.deduper.SeenAndRecord(ctx, key) {
			st := r.Tracker.Snapshot()
			s.logger.Debug(ctx, "duplicate submission", logger.String("run", id), logger.String("key", submissionKey))
			return Observation{Decision: st.Last, Round: st.Rounds, Duplicate: true}, nil
		}
		d, err := r.Tracker.Observe(ctx, rec)
		if err != nil {
			s.deduper.Unrecord(ctx, key)
			return Observation{Decision: d}, err
		}
		return Observation{Decision: d, Round: r.Tracker.Snapshot().Rounds}, nil
	}

	d, err := r.Tracker.Observe(ctx, rec)
	if err != nil {
		return Observation{Decision: d}, err
	}
	return Observation{Decision: d, Round: r.Tracker.Snapshot().Rounds}, nil
}

// DeleteRun removes a run.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "run deleted", logger.String("run", id))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":  s.started,
		"capacity": s.capacity,
		"defaults": s.defaults,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	runs, _ := s.runs.List(ctx)
	active, byReason := 0, map[string]int{}
	for _, r := range runs {
		st := r.Tracker.Snapshot()
		if !st.Stopped {
			active++
			continue
		}
		byReason[string(st.Last.Reason)]++
	}
	stats["runs"] = len(runs)
	stats["active_runs"] = active
	stats["stopped_by_reason"] = byReason
	stats["dedupe_keys"] = s.deduper.Size()
	metrics.UpdateActiveRuns(active)
	return stats
}
