package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/fedbench/internal/adapters/mq/queue"
	"github.com/okian/fedbench/internal/adapters/mq/worker"
	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/okian/fedbench/internal/domain/dataset"
	"github.com/okian/fedbench/internal/domain/model"
	"github.com/okian/fedbench/internal/domain/objective"
	"github.com/okian/fedbench/internal/domain/strategy"
	"github.com/okian/fedbench/internal/solver"
)

// Callback evaluates every model handed out by the solver and feeds the
// record to tracker. The run continues until the tracker decides to stop.
func Callback(o *Objective, tracker *convergence.Tracker) solver.Callback {
	return func(ctx context.Context, m model.Model) (bool, error) {
		res, err := o.Compute(ctx, m)
		if err != nil {
			return false, err
		}
		d, err := tracker.Observe(ctx, res.Record)
		if err != nil {
			return false, err
		}
		return !d.Stop, nil
	}
}

// DefaultTracker monitors the value key with a patience that effectively
// only stops on divergence.
func DefaultTracker(opts ...convergence.TrackerOption) *convergence.Tracker {
	c := convergence.NewSufficientProgress(
		convergence.WithPatience(convergence.DefaultPatience),
		convergence.WithEps(convergence.DefaultEps),
	)
	return convergence.NewTracker(c, objective.DefaultKey, opts...)
}

// Outcome summarises one solver run.
type Outcome struct {
	Solver   string               `json:"solver"`
	History  objective.History    `json:"history"`
	Decision convergence.Decision `json:"decision"`
	Rounds   int                  `json:"rounds"`
	Best     float64              `json:"best"`
}

// Final returns the monitored value of the last record, or +Inf when the
// run recorded nothing.
func (o Outcome) Final(key string) float64 {
	last, err := o.History.Last()
	if err != nil {
		return math.Inf(1)
	}
	v, err := last.Monitored(key)
	if err != nil {
		return math.Inf(1)
	}
	return v
}

// Run loads the dataset, trains with s until tracker stops and reports the outcome.
func Run(ctx context.Context, tpl *dataset.Template, p dataset.Params, s *solver.Solver, tracker *convergence.Tracker) (Outcome, error) {
	d, err := tpl.GetData(ctx, p)
	if err != nil {
		return Outcome{}, err
	}
	obj := NewObjective(WithSeed(p.Seed))
	if err := obj.SetData(d); err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", d.Name, err)
	}
	s.SetProblem(obj.Problem())
	if err := s.Run(ctx, Callback(obj, tracker)); err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", s.Name(), err)
	}
	st := tracker.Snapshot()
	return Outcome{
		Solver:   s.Name(),
		History:  st.History,
		Decision: st.Last,
		Rounds:   s.Rounds(),
		Best:     st.Best,
	}, nil
}

// Sweep runs every point of grid against the dataset, each with a fresh
// tracker built by newTracker.
func Sweep(
	ctx context.Context,
	tpl *dataset.Template,
	p dataset.Params,
	grid strategy.Grid,
	factory strategy.Factory,
	newTracker func() *convergence.Tracker,
) ([]Outcome, error) {
	points := grid.Expand()
	out := make([]Outcome, 0, len(points))
	for _, params := range points {
		s, err := solver.New(grid.Kind, params, factory)
		if err != nil {
			return out, err
		}
		o, err := Run(ctx, tpl, p, s, newTracker())
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

type sweepJob struct {
	index  int
	params strategy.Params
}

// SweepParallel runs the grid like Sweep on a pool of workers. Outcomes keep
// grid order; failed or panicking points are left out and their errors joined.
func SweepParallel(
	ctx context.Context,
	tpl *dataset.Template,
	p dataset.Params,
	grid strategy.Grid,
	factory strategy.Factory,
	newTracker func() *convergence.Tracker,
	workers int,
) ([]Outcome, error) {
	points := grid.Expand()
	outcomes := make([]Outcome, len(points))
	errs := make([]error, len(points))

	q := queue.NewInMemoryQueue[sweepJob](queue.WithCapacity(len(points)))
	for i, params := range points {
		q.Enqueue(ctx, sweepJob{index: i, params: params})
	}
	_ = q.Close()

	pool := worker.NewPool[sweepJob](min(workers, len(points)), q, func(ctx context.Context, j sweepJob) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("point %d: %w: %v", j.index, worker.ErrJobPanicked, r)
			}
			errs[j.index] = err
		}()
		s, err := solver.New(grid.Kind, j.params, factory)
		if err != nil {
			return err
		}
		outcomes[j.index], err = Run(ctx, tpl, p, s, newTracker())
		return err
	}, worker.WithName("sweep"))
	pool.Start(ctx)
	pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Outcome, 0, len(points))
	for i, o := range outcomes {
		if errs[i] == nil {
			out = append(out, o)
		}
	}
	return out, errors.Join(errs...)
}

// Best returns the outcome with the lowest final value under key.
func Best(outcomes []Outcome, key string) (Outcome, error) {
	if len(outcomes) == 0 {
		return Outcome{}, ErrNoOutcomes
	}
	best := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.Final(key) < best.Final(key) {
			best = o
		}
	}
	return best, nil
}

// BestParams picks, for every strategy kind present in outcomes, the
// parameters of the outcome with the lowest final value under key. Ties keep
// the earlier outcome.
func BestParams(outcomes []Outcome, key string) (map[strategy.Kind]strategy.Params, error) {
	if len(outcomes) == 0 {
		return nil, ErrNoOutcomes
	}
	best := make(map[strategy.Kind]strategy.Params)
	finals := make(map[strategy.Kind]float64)
	for _, o := range outcomes {
		p, err := strategy.FromName(o.Solver)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.Solver, err)
		}
		f := o.Final(key)
		if cur, ok := finals[p.Kind]; ok && f >= cur {
			continue
		}
		best[p.Kind], finals[p.Kind] = p, f
	}
	return best, nil
}
