// Package benchmark wires a federated dataset, an evaluation objective, a
// solver and a convergence tracker into one benchmark run.
package benchmark

import (
	"context"

	"github.com/okian/fedbench/internal/domain/dataset"
	"github.com/okian/fedbench/internal/domain/evaluation"
	"github.com/okian/fedbench/internal/domain/model"
	"github.com/okian/fedbench/internal/solver"
	"github.com/okian/fedbench/pkg/logger"
)

// DefaultSeed initialises every benchmark model.
const DefaultSeed = 42

// Objective evaluates models on the splits of one dataset.
type Objective struct {
	seed   uint64
	logger logger.Logger

	data  dataset.Data
	agg   *evaluation.Aggregator
	model model.Model
}

// ObjectiveOption configures an Objective.
type ObjectiveOption func(*Objective)

// WithSeed sets the model initialisation seed.
func WithSeed(seed uint64) ObjectiveOption {
	return func(o *Objective) { o.seed = seed }
}

// WithLogger sets the objective logger.
func WithLogger(l logger.Logger) ObjectiveOption {
	return func(o *Objective) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewObjective creates an objective without data.
func NewObjective(opts ...ObjectiveOption) *Objective {
	o := &Objective{seed: DefaultSeed, logger: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetData binds the objective to d and initialises the starting model.
func (o *Objective) SetData(d dataset.Data) error {
	if !d.Available() {
		return ErrNoData
	}
	o.data = d
	o.agg = evaluation.NewAggregator(d.Metric, d.Loss,
		evaluation.WithBatchSize(d.BatchSizeTest),
		evaluation.WithLogger(o.logger),
	)
	o.model = d.NewModel(o.seed)
	return nil
}

// Compute evaluates m and returns the round record.
func (o *Objective) Compute(ctx context.Context, m model.Model) (evaluation.Result, error) {
	if o.agg == nil {
		return evaluation.Result{}, ErrNotSet
	}
	return o.agg.Evaluate(ctx, evaluation.Input{
		Model:        m,
		TrainSets:    o.data.TrainSets,
		TestSets:     o.data.TestSets,
		PooledTest:   o.data.PooledTest,
		IsValidation: o.data.IsValidation,
	})
}

// Problem is what solvers train on.
func (o *Objective) Problem() solver.Problem {
	return solver.Problem{
		TrainSets:    o.data.TrainSets,
		TestSets:     o.data.TestSets,
		IsValidation: o.data.IsValidation,
		Model:        o.model,
		Loss:         o.data.Loss,
	}
}

// OneSolution returns a freshly initialised model.
func (o *Objective) OneSolution() (model.Model, error) {
	if o.agg == nil {
		return nil, ErrNotSet
	}
	return o.data.NewModel(o.seed), nil
}
