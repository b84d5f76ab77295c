// Package strategy defines the federated-learning strategy contract together
// with the hyperparameters and grids each strategy kind is benchmarked over.
package strategy

import (
	"context"
	"fmt"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/internal/domain/model"
)

// Kind names a strategy family.
type Kind string

// Known strategy kinds.
const (
	FedAvg     Kind = "FedAvg"
	FedProx    Kind = "FedProx"
	Scaffold   Kind = "Scaffold"
	FedAdam    Kind = "FedAdam"
	FedAdagrad Kind = "FedAdagrad"
	FedYogi    Kind = "FedYogi"
	Cyclic     Kind = "Cyclic"
)

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{FedAvg, FedProx, Scaffold, FedAdam, FedAdagrad, FedYogi, Cyclic}
}

// ParseKind resolves s to a Kind. "FederatedAveraging" is accepted for FedAvg.
func ParseKind(s string) (Kind, error) {
	if s == "FederatedAveraging" {
		return FedAvg, nil
	}
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Strategy trains a federation one round at a time.
type Strategy interface {
	PerformRound(ctx context.Context) error
	// Models returns the current models; index 0 is the one evaluated.
	Models() []model.Model
}

// Config is what a Factory needs to build a strategy.
type Config struct {
	TrainLoaders [][]data.Batch
	Model        model.Model
	Loss         model.LossFunc
	Params       Params
}

// Factory builds strategies.
type Factory interface {
	New(ctx context.Context, cfg Config) (Strategy, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cfg Config) (Strategy, error)

// New implements Factory.
func (f FactoryFunc) New(ctx context.Context, cfg Config) (Strategy, error) {
	return f(ctx, cfg)
}
