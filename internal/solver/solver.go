// Package solver drives a federated strategy round by round, asking a
// callback after every round whether to continue.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/internal/domain/model"
	"github.com/okian/fedbench/internal/domain/strategy"
	"github.com/okian/fedbench/pkg/logger"
	"github.com/okian/fedbench/pkg/metrics"
)

// Problem is what the objective hands to a solver.
type Problem struct {
	TrainSets    []data.Dataset
	TestSets     []data.Dataset
	IsValidation bool
	Model        model.Model
	Loss         model.LossFunc
}

// Callback is consulted with the current model before every round. It
// returns false once the run should stop.
type Callback func(ctx context.Context, m model.Model) (bool, error)

// Solver runs one strategy with one parameter set.
type Solver struct {
	kind    strategy.Kind
	params  strategy.Params
	factory strategy.Factory
	logger  logger.Logger

	problem *Problem
	final   model.Model
	rounds  int
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the solver logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a solver for kind. params.Kind is overwritten with kind.
func New(kind strategy.Kind, params strategy.Params, factory strategy.Factory, opts ...Option) (*Solver, error) {
	params.Kind = kind
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", strategy.ErrInvalidParams)
	}
	s := &Solver{kind: kind, params: params, factory: factory, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.String("solver", params.Name()))
	return s, nil
}

// Name returns the parameterised solver name.
func (s *Solver) Name() string { return s.params.Name() }

// Params returns the solver parameters.
func (s *Solver) Params() strategy.Params { return s.params }

// SetProblem stores the problem the next run trains on.
func (s *Solver) SetProblem(p Problem) { s.problem = &p }

// Rounds returns the rounds performed by the last run.
func (s *Solver) Rounds() int { return s.rounds }

func (s *Solver) build(ctx context.Context) (strategy.Strategy, error) {
	if s.problem == nil {
		return nil, ErrNotConfigured
	}
	loaders := make([][]data.Batch, len(s.problem.TrainSets))
	for i, ds := range s.problem.TrainSets {
		b, err := data.Batches(ds, s.params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}
		loaders[i] = b
	}
	st, err := s.factory.New(ctx, strategy.Config{
		TrainLoaders: loaders,
		Model:        s.problem.Model,
		Loss:         s.problem.Loss,
		Params:       s.params,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", s.kind, err)
	}
	return st, nil
}

func first(st strategy.Strategy) (model.Model, error) {
	ms := st.Models()
	if len(ms) == 0 {
		return nil, ErrNoModels
	}
	return ms[0], nil
}

func (s *Solver) round(ctx context.Context, st strategy.Strategy) error {
	start := time.Now()
	if err := st.PerformRound(ctx); err != nil {
		return fmt.Errorf("round %d: %w", s.rounds+1, err)
	}
	s.rounds++
	metrics.RecordStrategyRound(float64(time.Since(start).Milliseconds()))
	m, err := first(st)
	if err != nil {
		return err
	}
	s.final = m
	return nil
}

// Run trains while cb returns true. The model handed to cb is the one that
// becomes the result.
func (s *Solver) Run(ctx context.Context, cb Callback) error {
	st, err := s.build(ctx)
	if err != nil {
		return err
	}
	s.rounds = 0
	if s.final, err = first(st); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cont, err := cb(ctx, s.final)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
		if err := s.round(ctx, st); err != nil {
			return err
		}
	}
	s.logger.Info(ctx, "solver finished", logger.Int("rounds", s.rounds))
	return nil
}

// RunIterations performs exactly n rounds without consulting a callback.
func (s *Solver) RunIterations(ctx context.Context, n int) error {
	st, err := s.build(ctx)
	if err != nil {
		return err
	}
	s.rounds = 0
	if s.final, err = first(st); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.round(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Result returns the final model of the last run.
func (s *Solver) Result() (model.Model, error) {
	if s.final == nil {
		return nil, ErrNoResult
	}
	return s.final, nil
}
