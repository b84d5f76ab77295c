package strategy

// Candidate learning rates shared by the adaptive server optimisers.
var (
	adaptiveLearningRates       = []float64{0.1, 0.01, 0.001, 0.0001}
	adaptiveServerLearningRates = []float64{0.01, 0.1, 1}
)

// Grid holds the candidate values of every parameter of one kind. An empty
// axis falls back to the DefaultParams value. Expand never retains or
// mutates the slices.
type Grid struct {
	Kind               Kind
	LearningRate       []float64
	BatchSize          []int
	NumUpdates         []int
	Mu                 []float64
	ServerLearningRate []float64
	Tau                []float64
	Beta1              []float64
	Beta2              []float64
	DeterministicCycle []bool
}

// DefaultGrid returns the benchmarked grid for kind.
func DefaultGrid(kind Kind) Grid {
	g := Grid{
		Kind:         kind,
		LearningRate: []float64{0.01},
		BatchSize:    []int{32},
		NumUpdates:   []int{100},
	}
	switch kind {
	case FedProx:
		g.Mu = []float64{0.001}
	case Scaffold:
		g.ServerLearningRate = []float64{0.01}
	case FedAdam, FedAdagrad, FedYogi:
		g.LearningRate = append([]float64(nil), adaptiveLearningRates...)
		g.ServerLearningRate = append([]float64(nil), adaptiveServerLearningRates...)
		g.Tau = []float64{1e-8}
		g.Beta1 = []float64{0.9}
		g.Beta2 = []float64{0.999}
	case Cyclic:
		g.DeterministicCycle = []bool{false}
	}
	return g
}

type axis struct {
	n     int
	apply func(p *Params, i int)
}

func floatAxis(vals []float64, set func(*Params, float64)) axis {
	return axis{n: len(vals), apply: func(p *Params, i int) { set(p, vals[i]) }}
}

func intAxis(vals []int, set func(*Params, int)) axis {
	return axis{n: len(vals), apply: func(p *Params, i int) { set(p, vals[i]) }}
}

// axes returns the grid axes relevant to the kind in Keys order.
func (g Grid) axes() []axis {
	all := map[string]axis{
		ParamLearningRate: floatAxis(g.LearningRate, func(p *Params, v float64) { p.LearningRate = v }),
		ParamBatchSize:    intAxis(g.BatchSize, func(p *Params, v int) { p.BatchSize = v }),
		ParamNumUpdates:   intAxis(g.NumUpdates, func(p *Params, v int) { p.NumUpdates = v }),
		ParamMu:           floatAxis(g.Mu, func(p *Params, v float64) { p.Mu = v }),
		ParamServerLearningRate: floatAxis(g.ServerLearningRate, func(p *Params, v float64) {
			p.ServerLearningRate = v
		}),
		ParamTau:   floatAxis(g.Tau, func(p *Params, v float64) { p.Tau = v }),
		ParamBeta1: floatAxis(g.Beta1, func(p *Params, v float64) { p.Beta1 = v }),
		ParamBeta2: floatAxis(g.Beta2, func(p *Params, v float64) { p.Beta2 = v }),
		ParamDeterministicCycle: {n: len(g.DeterministicCycle), apply: func(p *Params, i int) {
			p.DeterministicCycle = g.DeterministicCycle[i]
		}},
	}
	keys := Keys(g.Kind)
	out := make([]axis, 0, len(keys))
	for _, k := range keys {
		if a := all[k]; a.n > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Size returns the number of points Expand yields.
func (g Grid) Size() int {
	n := 1
	for _, a := range g.axes() {
		n *= a.n
	}
	return n
}

// Expand returns the cross product of the grid. The last key in Keys order
// varies fastest.
func (g Grid) Expand() []Params {
	axes := g.axes()
	out := make([]Params, 0, g.Size())
	idx := make([]int, len(axes))
	for {
		p := DefaultParams(g.Kind)
		for k, a := range axes {
			a.apply(&p, idx[k])
		}
		out = append(out, p)

		k := len(axes) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < axes[k].n {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return out
		}
	}
}
