// Package convergence decides when an iterative federated optimisation should stop.
//
// A Checker looks at the objective history of a run and reports whether to
// stop together with a progress estimate in [0, 1]. The Tracker owns the
// mutable run state (history, best objective) and calls its Checker once per
// round.
package convergence

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/fedbench/internal/domain/objective"
	"github.com/okian/fedbench/pkg/logger"
)

// Default checker configuration, matching the solver template defaults.
const (
	DefaultPatience = 100_000_000
	DefaultEps      = 1e-10
)

// Reason explains a Decision.
type Reason string

// Decision reasons.
const (
	ReasonRunning  Reason = "running"
	ReasonDiverged Reason = "diverged"
	ReasonPlateau  Reason = "plateau"
	ReasonMaxRuns  Reason = "max_runs"
	ReasonTimeout  Reason = "timeout"
)

// Decision is the outcome of one convergence check.
type Decision struct {
	Stop     bool    `json:"stop"`
	Progress float64 `json:"progress"`
	Reason   Reason  `json:"reason"`
}

// Checker decides whether optimisation should stop.
type Checker interface {
	// Check inspects history given the best objective seen before the latest round.
	Check(ctx context.Context, history objective.History, best float64) (Decision, error)
	// Reset drops any state kept between checks.
	Reset()
}

// SufficientProgress stops when the objective diverges from its starting value
// or when the best relative improvement over the last patience rounds falls
// below eps times the best objective.
type SufficientProgress struct {
	patience int
	eps      float64
	key      string
	logger   logger.Logger

	// window holds the last patience deltas-from-best.
	window []float64
}

// NewSufficientProgress creates a checker with options applied over defaults.
func NewSufficientProgress(opts ...Option) *SufficientProgress {
	c := &SufficientProgress{
		patience: DefaultPatience,
		eps:      DefaultEps,
		key:      objective.DefaultKey,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Patience returns the window size.
func (c *SufficientProgress) Patience() int { return c.patience }

// Eps returns the convergence threshold.
func (c *SufficientProgress) Eps() float64 { return c.eps }

// Key returns the monitored record key.
func (c *SufficientProgress) Key() string { return c.key }

// Window returns a copy of the current progress window.
func (c *SufficientProgress) Window() []float64 {
	out := make([]float64, len(c.window))
	copy(out, c.window)
	return out
}

// Reset empties the progress window.
func (c *SufficientProgress) Reset() {
	c.window = c.window[:0]
}

// Check implements Checker.
func (c *SufficientProgress) Check(ctx context.Context, history objective.History, best float64) (Decision, error) {
	first, err := history.First()
	if err != nil {
		return Decision{}, err
	}
	last, _ := history.Last()

	start, err := first.Monitored(c.key)
	if err != nil {
		return Decision{}, err
	}
	current, err := last.Monitored(c.key)
	if err != nil {
		return Decision{}, err
	}
	if start == 0 {
		return Decision{}, fmt.Errorf("%w: key %q", ErrZeroStartObjective, c.key)
	}
	if !finite(start) || !finite(current) || !finite(best) {
		return Decision{}, fmt.Errorf("%w: key %q", objective.ErrNonFinite, c.key)
	}

	// Worse than the starting point counts as divergence.
	fromStart := (start - current) / start
	if fromStart < 0 {
		c.logger.Debug(ctx, "exit on divergence", logger.String("delta_from_start", fmt.Sprintf("%.2e", fromStart)))
		return Decision{Stop: true, Progress: 1, Reason: ReasonDiverged}, nil
	}

	delta := (best - current) / math.Abs(start)

	c.window = append(c.window, delta)
	if len(c.window) > c.patience {
		c.window = c.window[len(c.window)-c.patience:]
	}

	maxDelta := c.window[0]
	for _, d := range c.window[1:] {
		if d > maxDelta {
			maxDelta = d
		}
	}

	if maxDelta <= c.eps*best {
		c.logger.Debug(ctx, "exit on plateau", logger.String("delta", fmt.Sprintf("%.2e", maxDelta)))
		return Decision{Stop: true, Progress: 1, Reason: ReasonPlateau}, nil
	}

	progress := math.Log(math.Max(math.Abs(maxDelta), c.eps)) / math.Log(c.eps)
	return Decision{Progress: clamp01(progress), Reason: ReasonRunning}, nil
}

// clamp01 bounds progress when |maxDelta| exceeds one.
func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
