package evaluation

import (
	"fmt"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/internal/domain/model"
)

// Metric scores predictions against targets. Higher is better.
type Metric func(yTrue, yPred []float64) (float64, error)

// RobustMetric is a Metric that never fails.
type RobustMetric func(yTrue, yPred []float64) Value

// Robust wraps m so that errors, panics and non-finite results all degrade
// to Undefined.
func Robust(m Metric) RobustMetric {
	return func(yTrue, yPred []float64) (out Value) {
		defer func() {
			if r := recover(); r != nil {
				out = Undefined()
			}
		}()
		v, err := m(yTrue, yPred)
		if err != nil {
			return Undefined()
		}
		return Defined(v)
	}
}

// EvaluateModelOnTests applies metric to each loader, concatenating the
// predictions of all its batches first. Model failures are returned.
func EvaluateModelOnTests(m model.Model, loaders [][]data.Batch, metric RobustMetric) ([]Value, error) {
	out := make([]Value, len(loaders))
	for i, batches := range loaders {
		yTrue, yPred, err := predictAll(m, batches)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}
		out[i] = metric(yTrue, yPred)
	}
	return out, nil
}

func predictAll(m model.Model, batches []data.Batch) (yTrue, yPred []float64, err error) {
	for _, b := range batches {
		p, err := m.Predict(b.X)
		if err != nil {
			return nil, nil, err
		}
		yPred = append(yPred, p...)
		yTrue = append(yTrue, b.Y...)
	}
	return yTrue, yPred, nil
}
