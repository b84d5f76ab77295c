package strategy

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Parameter names.
const (
	ParamLearningRate       = "learning_rate"
	ParamBatchSize          = "batch_size"
	ParamNumUpdates         = "num_updates"
	ParamMu                 = "mu"
	ParamServerLearningRate = "server_learning_rate"
	ParamTau                = "tau"
	ParamBeta1              = "beta1"
	ParamBeta2              = "beta2"
	ParamDeterministicCycle = "deterministic_cycle"
)

// Params is one hyperparameter set for a strategy kind.
type Params struct {
	Kind               Kind
	LearningRate       float64
	BatchSize          int
	NumUpdates         int
	Mu                 float64
	ServerLearningRate float64
	Tau                float64
	Beta1              float64
	Beta2              float64
	DeterministicCycle bool
}

// DefaultParams returns the first point of DefaultGrid(kind).
func DefaultParams(kind Kind) Params {
	return Params{
		Kind:               kind,
		LearningRate:       0.01,
		BatchSize:          32,
		NumUpdates:         100,
		Mu:                 0.001,
		ServerLearningRate: 0.01,
		Tau:                1e-8,
		Beta1:              0.9,
		Beta2:              0.999,
	}
}

// specificKeys lists the kind's own parameters.
func specificKeys(kind Kind) []string {
	switch kind {
	case FedProx:
		return []string{ParamMu}
	case Scaffold:
		return []string{ParamServerLearningRate}
	case FedAdam, FedAdagrad, FedYogi:
		return []string{ParamServerLearningRate, ParamTau, ParamBeta1, ParamBeta2}
	case Cyclic:
		return []string{ParamDeterministicCycle}
	default:
		return nil
	}
}

// Keys returns every parameter name of kind, sorted.
func Keys(kind Kind) []string {
	keys := append([]string{ParamLearningRate, ParamBatchSize, ParamNumUpdates}, specificKeys(kind)...)
	sort.Strings(keys)
	return keys
}

// Validate checks kind and value ranges.
func (p Params) Validate() error {
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	switch {
	case p.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate %v", ErrInvalidParams, p.LearningRate)
	case p.BatchSize <= 0:
		return fmt.Errorf("%w: batch size %d", ErrInvalidParams, p.BatchSize)
	case p.NumUpdates <= 0:
		return fmt.Errorf("%w: num updates %d", ErrInvalidParams, p.NumUpdates)
	}
	for _, k := range specificKeys(p.Kind) {
		switch k {
		case ParamMu:
			if p.Mu < 0 {
				return fmt.Errorf("%w: mu %v", ErrInvalidParams, p.Mu)
			}
		case ParamServerLearningRate:
			if p.ServerLearningRate <= 0 {
				return fmt.Errorf("%w: server learning rate %v", ErrInvalidParams, p.ServerLearningRate)
			}
		case ParamBeta1, ParamBeta2:
			if p.Beta1 < 0 || p.Beta1 >= 1 || p.Beta2 < 0 || p.Beta2 >= 1 {
				return fmt.Errorf("%w: betas %v, %v", ErrInvalidParams, p.Beta1, p.Beta2)
			}
		}
	}
	return nil
}

// StrategyArgs returns only the kind-specific arguments.
func (p Params) StrategyArgs() map[string]any {
	out := make(map[string]any)
	for _, k := range specificKeys(p.Kind) {
		out[k] = p.value(k)
	}
	return out
}

func (p Params) value(key string) any {
	switch key {
	case ParamLearningRate:
		return p.LearningRate
	case ParamBatchSize:
		return p.BatchSize
	case ParamNumUpdates:
		return p.NumUpdates
	case ParamMu:
		return p.Mu
	case ParamServerLearningRate:
		return p.ServerLearningRate
	case ParamTau:
		return p.Tau
	case ParamBeta1:
		return p.Beta1
	case ParamBeta2:
		return p.Beta2
	case ParamDeterministicCycle:
		return p.DeterministicCycle
	}
	return nil
}

func format(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// Name renders p as Kind[k=v,...] with keys sorted.
func (p Params) Name() string {
	keys := Keys(p.Kind)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + format(p.value(k))
	}
	return string(p.Kind) + "[" + strings.Join(parts, ",") + "]"
}

func (p Params) String() string { return p.Name() }

var nameRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)\[(.*)\]$`)

// ParseName splits a name produced by Name into its kind and raw values.
func ParseName(name string) (Kind, map[string]string, error) {
	m := nameRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	kind, err := ParseKind(m[1])
	if err != nil {
		return "", nil, err
	}
	values := make(map[string]string)
	if m[2] == "" {
		return kind, values, nil
	}
	for _, pv := range strings.Split(m[2], ",") {
		k, v, ok := strings.Cut(pv, "=")
		if !ok || k == "" {
			return "", nil, fmt.Errorf("%w: bad pair %q", ErrInvalidName, pv)
		}
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return kind, values, nil
}

// FromName parses name back into Params. Missing keys keep their defaults.
func FromName(name string) (Params, error) {
	kind, values, err := ParseName(name)
	if err != nil {
		return Params{}, err
	}
	p := DefaultParams(kind)
	for k, raw := range values {
		if err := p.set(k, raw); err != nil {
			return Params{}, err
		}
	}
	return p, p.Validate()
}

func (p *Params) set(key, raw string) error {
	var err error
	switch key {
	case ParamLearningRate:
		p.LearningRate, err = strconv.ParseFloat(raw, 64)
	case ParamBatchSize:
		p.BatchSize, err = strconv.Atoi(raw)
	case ParamNumUpdates:
		p.NumUpdates, err = strconv.Atoi(raw)
	case ParamMu:
		p.Mu, err = strconv.ParseFloat(raw, 64)
	case ParamServerLearningRate:
		p.ServerLearningRate, err = strconv.ParseFloat(raw, 64)
	case ParamTau:
		p.Tau, err = strconv.ParseFloat(raw, 64)
	case ParamBeta1:
		p.Beta1, err = strconv.ParseFloat(raw, 64)
	case ParamBeta2:
		p.Beta2, err = strconv.ParseFloat(raw, 64)
	case ParamDeterministicCycle:
		p.DeterministicCycle, err = strconv.ParseBool(raw)
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidName, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%s: %v", ErrInvalidName, key, raw, err)
	}
	return nil
}
