// Package evaluation turns a model and per-client splits into the flat
// objective record of one round.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/internal/domain/model"
	"github.com/okian/fedbench/internal/domain/objective"
	"github.com/okian/fedbench/pkg/logger"
	"github.com/okian/fedbench/pkg/metrics"
	"gonum.org/v1/gonum/floats"
)

// Record keys.
const (
	KeyAverageTest      = "average_test"
	KeyPooledTest       = "pooled_test"
	KeyPooledTestLoss   = "pooled_test_loss"
	KeyAverageTrainLoss = "average_train_loss"
	KeyAverageTestLoss  = "average_test_loss"
)

// ClientTestKey is the per-client metric key.
func ClientTestKey(i int) string { return fmt.Sprintf("client_test_%d", i) }

// TrainLossKey is the per-client train loss key.
func TrainLossKey(i int) string { return fmt.Sprintf("train_loss_client_%d", i) }

// TestLossKey is the per-client test loss key.
func TestLossKey(i int) string { return fmt.Sprintf("test_loss_client_%d", i) }

// Input is everything one evaluation round needs.
type Input struct {
	Model        model.Model
	TrainSets    []data.Dataset
	TestSets     []data.Dataset
	PooledTest   data.Dataset // optional
	IsValidation bool
}

// Result is the outcome of one evaluation round.
type Result struct {
	Record  objective.Record
	Skipped []int   // clients whose metric was undefined
	Clients []Value // per-client metric, indexed like Input.TestSets
}

// Aggregator computes per-client and pooled metrics and losses.
// It keeps no state between calls.
type Aggregator struct {
	metric    RobustMetric
	loss      model.LossFunc
	batchSize int
	logger    logger.Logger
}

// NewAggregator creates an aggregator scoring with metric and loss.
func NewAggregator(metric Metric, loss model.LossFunc, opts ...Option) *Aggregator {
	a := &Aggregator{
		metric:    Robust(metric),
		loss:      loss,
		batchSize: DefaultBatchSize,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BatchSize returns the configured batch size.
func (a *Aggregator) BatchSize() int { return a.batchSize }

// Evaluate scores in.Model. Undefined client metrics are skipped from the
// metric and test-loss averages; model and loss failures abort the round.
func (a *Aggregator) Evaluate(ctx context.Context, in Input) (Result, error) {
	if in.Model == nil {
		return Result{}, ErrNilModel
	}
	start := time.Now()
	res, err := a.evaluate(ctx, in)
	if err != nil {
		metrics.RecordEvaluationError(errorKind(err))
		a.logger.Error(ctx, "evaluation failed", logger.Error(err))
		return Result{}, err
	}
	metrics.RecordEvaluation(float64(time.Since(start).Milliseconds()), len(in.TestSets)-len(res.Skipped))
	return res, nil
}

func (a *Aggregator) evaluate(ctx context.Context, in Input) (Result, error) {
	testLoaders, err := a.loaders(in.TestSets)
	if err != nil {
		return Result{}, err
	}
	values, err := EvaluateModelOnTests(in.Model, testLoaders, a.metric)
	if err != nil {
		return Result{}, err
	}

	var rec objective.Record
	skipped := make([]int, 0)
	isSkipped := make(map[int]bool)
	scores := make([]float64, 0, len(values))
	for i, v := range values {
		x, ok := v.Get()
		if !ok {
			skipped = append(skipped, i)
			isSkipped[i] = true
			metrics.RecordUndefinedClientMetric()
			continue
		}
		rec.Set(ClientTestKey(i), x)
		scores = append(scores, x)
	}
	defined := len(values) - len(skipped)
	if defined == 0 {
		return Result{}, fmt.Errorf("%w: %d clients", ErrNoDefinedClients, len(values))
	}
	if len(skipped) > 0 {
		a.logger.Debug(ctx, "skipping clients with undefined metric", logger.Ints("clients", skipped))
	}
	rec.Set(KeyAverageTest, floats.Sum(scores)/float64(defined))

	var pooled []data.Batch
	if in.PooledTest != nil {
		if pooled, err = data.Batches(in.PooledTest, a.batchSize); err != nil {
			return Result{}, err
		}
		pv, err := EvaluateModelOnTests(in.Model, [][]data.Batch{pooled}, a.metric)
		if err != nil {
			return Result{}, fmt.Errorf("pooled: %w", err)
		}
		if x, ok := pv[0].Get(); ok {
			rec.Set(KeyPooledTest, x)
		}
	}

	if len(in.TrainSets) == 0 {
		return Result{}, fmt.Errorf("%w: no train sets", ErrEmptyDataset)
	}
	trainLosses := make([]float64, len(in.TrainSets))
	for i, ds := range in.TrainSets {
		batches, err := data.Batches(ds, a.batchSize)
		if err != nil {
			return Result{}, err
		}
		l, err := a.meanLoss(in.Model, batches)
		if err != nil {
			return Result{}, fmt.Errorf("train client %d: %w", i, err)
		}
		rec.Set(TrainLossKey(i), l)
		trainLosses[i] = l
	}

	testLosses := make([]float64, 0, defined)
	testLoss := make(map[int]float64, defined)
	for i, batches := range testLoaders {
		if isSkipped[i] {
			continue
		}
		l, err := a.meanLoss(in.Model, batches)
		if err != nil {
			return Result{}, fmt.Errorf("test client %d: %w", i, err)
		}
		rec.Set(TestLossKey(i), l)
		testLoss[i] = l
		testLosses = append(testLosses, l)
	}

	if l, ok := testLoss[0]; ok && len(in.TestSets) == 1 {
		rec.Set(KeyPooledTestLoss, l)
	} else if in.PooledTest != nil {
		l, err := a.meanLoss(in.Model, pooled)
		if err != nil {
			return Result{}, fmt.Errorf("pooled: %w", err)
		}
		rec.Set(KeyPooledTestLoss, l)
	}

	avgTrain := floats.Sum(trainLosses) / float64(len(trainLosses))
	avgTest := floats.Sum(testLosses) / float64(defined)
	rec.Set(KeyAverageTrainLoss, avgTrain)
	rec.Set(KeyAverageTestLoss, avgTest)
	if in.IsValidation {
		rec.Set(objective.DefaultKey, avgTest)
	} else {
		rec.Set(objective.DefaultKey, avgTrain)
	}

	return Result{Record: rec, Skipped: skipped, Clients: values}, nil
}

func (a *Aggregator) loaders(sets []data.Dataset) ([][]data.Batch, error) {
	out := make([][]data.Batch, len(sets))
	for i, ds := range sets {
		b, err := data.Batches(ds, a.batchSize)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// meanLoss averages loss over batches.
func (a *Aggregator) meanLoss(m model.Model, batches []data.Batch) (float64, error) {
	if len(batches) == 0 {
		return 0, ErrEmptyDataset
	}
	var sum float64
	for _, b := range batches {
		p, err := m.Predict(b.X)
		if err != nil {
			return 0, err
		}
		l, err := a.loss(p, b.Y)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return 0, fmt.Errorf("%w: %v", ErrNonFiniteLoss, l)
		}
		sum += l
	}
	return sum / float64(len(batches)), nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoDefinedClients):
		return "no_defined_clients"
	case errors.Is(err, ErrEmptyDataset):
		return "empty_dataset"
	case errors.Is(err, ErrNonFiniteLoss):
		return "non_finite_loss"
	default:
		return "model"
	}
}
