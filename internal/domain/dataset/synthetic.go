package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/okian/fedbench/internal/domain/data"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Synthetic defaults.
const (
	DefaultSyntheticClients  = 6
	DefaultSyntheticFeatures = 10
	DefaultSyntheticTrain    = 150
	DefaultSyntheticTest     = 50
)

// Synthetic is a seeded in-memory Provider. Client i draws labels with its
// own positive rate and features from a gaussian centred on a per-client
// shift plus a class-dependent offset, so clients are heterogeneous.
type Synthetic struct {
	clients  int
	features int
	nTrain   int
	nTest    int
	seed     uint64
	rates    []float64

	train []data.Dataset
	test  []data.Dataset
}

// SyntheticOption configures a Synthetic provider.
type SyntheticOption func(*Synthetic)

// WithClients sets the number of clients.
func WithClients(n int) SyntheticOption {
	return func(s *Synthetic) {
		if n > 0 {
			s.clients = n
		}
	}
}

// WithFeatures sets the feature dimension.
func WithFeatures(n int) SyntheticOption {
	return func(s *Synthetic) {
		if n > 0 {
			s.features = n
		}
	}
}

// WithSamples sets the per-client train and test sizes.
func WithSamples(train, test int) SyntheticOption {
	return func(s *Synthetic) {
		if train > 0 && test > 0 {
			s.nTrain, s.nTest = train, test
		}
	}
}

// WithSeed sets the generator seed.
func WithSeed(seed uint64) SyntheticOption {
	return func(s *Synthetic) { s.seed = seed }
}

// WithPositiveRates sets the probability of label 1 per client, cycling when
// fewer rates than clients are given. A rate of 0 or 1 gives a single-class
// client.
func WithPositiveRates(rates ...float64) SyntheticOption {
	return func(s *Synthetic) {
		for _, r := range rates {
			if r < 0 || r > 1 {
				return
			}
		}
		if len(rates) > 0 {
			s.rates = rates
		}
	}
}

// NewSynthetic generates every client split up front.
func NewSynthetic(opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{
		clients:  DefaultSyntheticClients,
		features: DefaultSyntheticFeatures,
		nTrain:   DefaultSyntheticTrain,
		nTest:    DefaultSyntheticTest,
		seed:     42,
		rates:    []float64{0.5},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.generate()
	return s
}

func (s *Synthetic) generate() {
	src := rand.NewPCG(s.seed, s.seed^0xda3e39cb94b95bdb)
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	offset := make([]float64, s.features)
	for j := range offset {
		offset[j] = unit.Rand()
	}

	s.train = make([]data.Dataset, s.clients)
	s.test = make([]data.Dataset, s.clients)
	for i := 0; i < s.clients; i++ {
		shift := distuv.Normal{Mu: 0, Sigma: 0.5, Src: src}.Rand()
		label := distuv.Bernoulli{P: s.rates[i%len(s.rates)], Src: src}
		s.train[i] = s.draw(s.nTrain, shift, offset, label, unit)
		s.test[i] = s.draw(s.nTest, shift, offset, label, unit)
	}
}

func (s *Synthetic) draw(n int, shift float64, offset []float64, label distuv.Bernoulli, noise distuv.Normal) data.Dataset {
	x := mat.NewDense(n, s.features, nil)
	y := make([]float64, n)
	for r := 0; r < n; r++ {
		y[r] = label.Rand()
		sign := 2*y[r] - 1
		for c := 0; c < s.features; c++ {
			x.Set(r, c, shift+sign*offset[c]+noise.Rand())
		}
	}
	ds, _ := data.NewInMemory(x, y)
	return ds
}

// NumClients implements Provider.
func (s *Synthetic) NumClients() int { return s.clients }

// Features returns the feature dimension.
func (s *Synthetic) Features() int { return s.features }

// Client implements Provider.
func (s *Synthetic) Client(i int, train bool) (data.Dataset, error) {
	if i < 0 || i >= s.clients {
		return nil, fmt.Errorf("%w: client %d of %d", ErrInvalidParams, i, s.clients)
	}
	if train {
		return s.train[i], nil
	}
	return s.test[i], nil
}

// Pooled implements Provider.
func (s *Synthetic) Pooled(train bool) (data.Dataset, error) {
	if train {
		return data.Concat(s.train...), nil
	}
	return data.Concat(s.test...), nil
}
