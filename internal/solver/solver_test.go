package solver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/fedbench/internal/domain/data"
	"github.com/okian/fedbench/internal/domain/model"
	"github.com/okian/fedbench/internal/domain/strategy"
	"github.com/okian/fedbench/internal/solver"
	"github.com/smartystreets/goconvey/convey"
)

// countingStrategy exposes a model whose single weight is the round count.
type countingStrategy struct {
	rounds  int
	cfg     strategy.Config
	failAt  int
	noModel bool
}

func (c *countingStrategy) PerformRound(context.Context) error {
	if c.failAt > 0 && c.rounds+1 == c.failAt {
		return errors.New("client dropped")
	}
	c.rounds++
	return nil
}

func (c *countingStrategy) Models() []model.Model {
	if c.noModel {
		return nil
	}
	return []model.Model{model.NewLogisticWith([]float64{float64(c.rounds)}, 0)}
}

func weight(m model.Model) float64 {
	return m.(*model.Logistic).Weights()[0]
}

func problem() solver.Problem {
	ds, _ := data.FromRows([][]float64{{1}, {2}, {3}}, []float64{0, 1, 1})
	return solver.Problem{
		TrainSets: []data.Dataset{ds, ds},
		TestSets:  []data.Dataset{ds},
		Model:     model.NewLogisticWith([]float64{0}, 0),
		Loss:      model.BCELoss,
	}
}

func TestSolver_Run(t *testing.T) {
	convey.Convey("Given a solver over a counting strategy", t, func() {
		ctx := context.Background()
		st := &countingStrategy{}
		factory := strategy.FactoryFunc(func(_ context.Context, cfg strategy.Config) (strategy.Strategy, error) {
			st.cfg = cfg
			return st, nil
		})
		params := strategy.DefaultParams(strategy.FedAvg)
		params.BatchSize = 2
		s, err := solver.New(strategy.FedAvg, params, factory)
		convey.So(err, convey.ShouldBeNil)
		s.SetProblem(problem())

		convey.Convey("When the callback allows three rounds", func() {
			var seen []float64
			err := s.Run(ctx, func(_ context.Context, m model.Model) (bool, error) {
				seen = append(seen, weight(m))
				return len(seen) <= 3, nil
			})

			convey.Convey("Then the callback sees every model once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(seen, convey.ShouldResemble, []float64{0, 1, 2, 3})
				convey.So(s.Rounds(), convey.ShouldEqual, 3)
			})

			convey.Convey("Then the result is the last model seen", func() {
				m, err := s.Result()
				convey.So(err, convey.ShouldBeNil)
				convey.So(weight(m), convey.ShouldEqual, 3.0)
			})

			convey.Convey("Then train sets were batched with the solver batch size", func() {
				convey.So(len(st.cfg.TrainLoaders), convey.ShouldEqual, 2)
				convey.So(len(st.cfg.TrainLoaders[0]), convey.ShouldEqual, 2)
				convey.So(st.cfg.Params.Kind, convey.ShouldEqual, strategy.FedAvg)
			})
		})

		convey.Convey("When the callback fails", func() {
			err := s.Run(ctx, func(context.Context, model.Model) (bool, error) {
				return false, errors.New("evaluation failed")
			})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When a round fails", func() {
			st.failAt = 2
			err := s.Run(ctx, func(context.Context, model.Model) (bool, error) { return true, nil })
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(s.Rounds(), convey.ShouldEqual, 1)
		})

		convey.Convey("When running a fixed number of iterations", func() {
			convey.So(s.RunIterations(ctx, 5), convey.ShouldBeNil)
			m, _ := s.Result()
			convey.So(weight(m), convey.ShouldEqual, 5.0)
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := s.RunIterations(cctx, 5)
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})

		convey.Convey("When the strategy has no models", func() {
			st.noModel = true
			err := s.RunIterations(ctx, 1)
			convey.So(errors.Is(err, solver.ErrNoModels), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a solver without a problem", t, func() {
		s, err := solver.New(strategy.FedProx, strategy.DefaultParams(strategy.FedProx), strategy.FactoryFunc(
			func(context.Context, strategy.Config) (strategy.Strategy, error) { return &countingStrategy{}, nil },
		))
		convey.So(err, convey.ShouldBeNil)
		convey.So(s.Name(), convey.ShouldStartWith, "FedProx[")

		_, err = s.Result()
		convey.So(errors.Is(err, solver.ErrNoResult), convey.ShouldBeTrue)
		err = s.RunIterations(context.Background(), 1)
		convey.So(errors.Is(err, solver.ErrNotConfigured), convey.ShouldBeTrue)
	})

	convey.Convey("Given invalid construction arguments", t, func() {
		_, err := solver.New(strategy.FedAvg, strategy.DefaultParams(strategy.FedAvg), nil)
		convey.So(err, convey.ShouldNotBeNil)
		bad := strategy.DefaultParams(strategy.FedAvg)
		bad.LearningRate = 0
		_, err = solver.New(strategy.FedAvg, bad, strategy.FactoryFunc(nil))
		convey.So(errors.Is(err, strategy.ErrInvalidParams), convey.ShouldBeTrue)
	})
}
