package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/pkg/logger"
)

// Template turns a Spec into split data for given Params.
type Template struct {
	spec   Spec
	logger logger.Logger
}

// TemplateOption configures a Template.
type TemplateOption func(*Template)

// WithTemplateLogger sets the template logger.
func WithTemplateLogger(l logger.Logger) TemplateOption {
	return func(t *Template) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTemplate creates a template for spec.
func NewTemplate(spec Spec, opts ...TemplateOption) *Template {
	if spec.BatchSizeTest <= 0 {
		spec.BatchSizeTest = 100
	}
	if spec.TestSize <= 0 || spec.TestSize >= 1 {
		spec.TestSize = 0.2
	}
	t := &Template{spec: spec, logger: logger.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Spec returns the dataset spec.
func (t *Template) Spec() Spec { return t.spec }

// GetData loads every split. When the provider is missing or reports its
// data unavailable the returned Data carries no splits and no error.
func (t *Template) GetData(ctx context.Context, p Params) (Data, error) {
	if err := p.Validate(); err != nil {
		return Data{}, err
	}
	out := Data{
		Name:          t.spec.Name,
		IsValidation:  p.Test == TestValidation,
		NumClients:    t.spec.Clients,
		BatchSizeTest: t.spec.BatchSizeTest,
		NewModel:      t.spec.NewModel,
		Loss:          t.spec.Loss,
		Metric:        t.spec.Metric,
	}

	loaded, err := t.load()
	switch {
	case isUnavailable(err):
		t.logger.Warn(ctx, "dataset unavailable, returning empty splits",
			logger.String("dataset", t.spec.Name), logger.Error(err))
		return out, nil
	case err != nil:
		return Data{}, err
	}
	out.TrainSets, out.TestSets = loaded.TrainSets, loaded.TestSets
	out.PooledTrain, out.PooledTest = loaded.PooledTrain, loaded.PooledTest
	out.NumClients = len(out.TrainSets)

	if p.Train == TrainPooled {
		out.TrainSets = []data.Dataset{out.PooledTrain}
		out.NumClients = 1
	}

	if out.IsValidation {
		if err := t.splitValidation(&out, p.Seed); err != nil {
			return Data{}, err
		}
	}

	t.logger.Debug(ctx, "dataset loaded",
		logger.String("dataset", t.spec.Name),
		logger.Int("clients", out.NumClients),
		logger.Bool("validation", out.IsValidation),
	)
	return out, nil
}

func (t *Template) load() (Data, error) {
	pr := t.spec.Provider
	if pr == nil {
		return Data{}, fmt.Errorf("%w: %s has no provider", ErrUnavailable, t.spec.Name)
	}
	n := pr.NumClients()
	var d Data
	for i := 0; i < n; i++ {
		train, err := pr.Client(i, true)
		if err != nil {
			return Data{}, fmt.Errorf("client %d train: %w", i, err)
		}
		test, err := pr.Client(i, false)
		if err != nil {
			return Data{}, fmt.Errorf("client %d test: %w", i, err)
		}
		d.TrainSets = append(d.TrainSets, train)
		d.TestSets = append(d.TestSets, test)
	}
	var err error
	if d.PooledTrain, err = pr.Pooled(true); err != nil {
		return Data{}, fmt.Errorf("pooled train: %w", err)
	}
	if d.PooledTest, err = pr.Pooled(false); err != nil {
		return Data{}, fmt.Errorf("pooled test: %w", err)
	}
	return d, nil
}

// splitValidation replaces the test sets with a validation part of each
// train set and rebuilds the pooled sets from the new parts.
func (t *Template) splitValidation(d *Data, seed uint64) error {
	trains := make([]data.Dataset, len(d.TrainSets))
	vals := make([]data.Dataset, len(d.TrainSets))
	for i, ds := range d.TrainSets {
		var labels []float64
		if t.spec.Stratify {
			labels = data.Labels(ds)
		}
		trIdx, valIdx, err := TrainTestSplit(ds.Len(), t.spec.TestSize, seed, labels)
		if err != nil {
			return fmt.Errorf("client %d: %w", i, err)
		}
		if trains[i], err = data.Subset(ds, trIdx); err != nil {
			return err
		}
		if vals[i], err = data.Subset(ds, valIdx); err != nil {
			return err
		}
	}
	d.TrainSets = trains
	d.TestSets = vals
	d.PooledTrain = data.Concat(trains...)
	d.PooledTest = data.Concat(vals...)
	return nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, fs.ErrNotExist)
}
