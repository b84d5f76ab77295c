// Package dataset loads federated datasets into per-client train and test
// splits, optionally carving a seeded validation split out of each client's
// train set.
package dataset

import (
	"fmt"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/internal/domain/evaluation"
	"github.com/okian/fedbench/internal/domain/model"
)

// Provider serves the raw splits of a federated dataset.
type Provider interface {
	NumClients() int
	Client(i int, train bool) (data.Dataset, error)
	Pooled(train bool) (data.Dataset, error)
}

// ModelFactory builds a freshly initialised model from a seed.
type ModelFactory func(seed uint64) model.Model

// Spec describes one federated dataset and the pieces evaluated with it.
type Spec struct {
	Name          string
	Clients       int
	Features      int
	TestSize      float64
	BatchSizeTest int
	Stratify      bool // stratify validation splits on the label

	Provider Provider // nil when the data is not shipped with this module
	NewModel ModelFactory
	Loss     model.LossFunc
	Metric   evaluation.Metric
}

// Train modes.
const (
	TrainFederated = "fl"
	TrainPooled    = "pooled"
)

// Test modes.
const (
	TestHeldOut    = "test"
	TestValidation = "val"
)

// Params select how a dataset is split.
type Params struct {
	Train string `json:"train" koanf:"train"`
	Test  string `json:"test" koanf:"test"`
	Seed  uint64 `json:"seed" koanf:"seed"`
}

// DefaultParams is federated training evaluated on validation splits.
func DefaultParams() Params {
	return Params{Train: TrainFederated, Test: TestValidation, Seed: 42}
}

// Validate checks the parameter values.
func (p Params) Validate() error {
	switch p.Train {
	case TrainFederated, "federated", TrainPooled:
	default:
		return fmt.Errorf("%w: train %q", ErrInvalidParams, p.Train)
	}
	switch p.Test {
	case TestHeldOut, TestValidation:
	default:
		return fmt.Errorf("%w: test %q", ErrInvalidParams, p.Test)
	}
	return nil
}

// Data is what a Template hands to the benchmark objective.
type Data struct {
	Name          string
	TrainSets     []data.Dataset
	TestSets      []data.Dataset
	PooledTrain   data.Dataset
	PooledTest    data.Dataset
	IsValidation  bool
	NumClients    int
	BatchSizeTest int

	NewModel ModelFactory
	Loss     model.LossFunc
	Metric   evaluation.Metric
}

// Available reports whether any split was loaded.
func (d Data) Available() bool { return len(d.TrainSets) > 0 }
