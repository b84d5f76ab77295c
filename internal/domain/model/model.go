// Package model contains the model contract evaluated every round, plus a
// logistic-regression baseline with its loss and metrics.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Model maps a feature batch to one prediction per row.
type Model interface {
	Predict(x *mat.Dense) ([]float64, error)
}

// Cloner is implemented by models that can produce an independent copy.
type Cloner interface {
	Clone() Model
}

// Logistic is a binary logistic-regression model: sigmoid(x·w + b).
type Logistic struct {
	w *mat.VecDense
	b float64
}

// NewLogistic returns a model for features inputs with weights drawn
// uniformly from [-1/sqrt(features), 1/sqrt(features)] using seed.
// features below 1 are treated as 1.
func NewLogistic(features int, seed uint64) *Logistic {
	features = max(features, 1)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	bound := 1 / math.Sqrt(float64(features))
	w := make([]float64, features)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	return &Logistic{
		w: mat.NewVecDense(features, w),
		b: (rng.Float64()*2 - 1) * bound,
	}
}

// NewLogisticWith builds a model from explicit weights and bias.
// An empty weight slice yields a single zero weight.
func NewLogisticWith(weights []float64, bias float64) *Logistic {
	w := make([]float64, max(len(weights), 1))
	copy(w, weights)
	return &Logistic{w: mat.NewVecDense(len(w), w), b: bias}
}

// Features returns the input dimension.
func (m *Logistic) Features() int { return m.w.Len() }

// Weights returns a copy of the weight vector followed by the bias.
func (m *Logistic) Weights() []float64 {
	out := make([]float64, 0, m.w.Len()+1)
	out = append(out, m.w.RawVector().Data...)
	return append(out, m.b)
}

// Predict implements Model.
func (m *Logistic) Predict(x *mat.Dense) ([]float64, error) {
	r, c := x.Dims()
	if c != m.w.Len() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, c, m.w.Len())
	}
	var z mat.VecDense
	z.MulVec(x, m.w)
	out := make([]float64, r)
	for i := range out {
		out[i] = sigmoid(z.AtVec(i) + m.b)
	}
	return out, nil
}

// Clone implements Cloner.
func (m *Logistic) Clone() Model {
	return &Logistic{w: mat.VecDenseCopyOf(m.w), b: m.b}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
