package strategy_test

import (
	"errors"
	"testing"

	"github.com/okian/fedbench/internal/domain/strategy"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParams(t *testing.T) {
	Convey("Given FedProx defaults", t, func() {
		p := strategy.DefaultParams(strategy.FedProx)

		Convey("Then the name lists every parameter sorted", func() {
			So(p.Name(), ShouldEqual, "FedProx[batch_size=32,learning_rate=0.01,mu=0.001,num_updates=100]")
		})

		Convey("Then only mu is strategy specific", func() {
			So(p.StrategyArgs(), ShouldResemble, map[string]any{"mu": 0.001})
		})

		Convey("Then the name parses back", func() {
			back, err := strategy.FromName(p.Name())
			So(err, ShouldBeNil)
			So(back, ShouldResemble, p)
		})
	})

	Convey("Given the adaptive kinds", t, func() {
		args := strategy.DefaultParams(strategy.FedYogi).StrategyArgs()
		So(args, ShouldResemble, map[string]any{
			"server_learning_rate": 0.01, "tau": 1e-8, "beta1": 0.9, "beta2": 0.999,
		})
		So(strategy.DefaultParams(strategy.FedAvg).StrategyArgs(), ShouldBeEmpty)
		So(strategy.DefaultParams(strategy.Cyclic).StrategyArgs(), ShouldResemble, map[string]any{"deterministic_cycle": false})
	})

	Convey("Given invalid params", t, func() {
		p := strategy.DefaultParams(strategy.FedAvg)
		p.BatchSize = 0
		So(errors.Is(p.Validate(), strategy.ErrInvalidParams), ShouldBeTrue)

		q := strategy.DefaultParams(strategy.FedAdam)
		q.Beta2 = 1
		So(errors.Is(q.Validate(), strategy.ErrInvalidParams), ShouldBeTrue)

		r := strategy.Params{Kind: "FedSGD", LearningRate: 1, BatchSize: 1, NumUpdates: 1}
		So(errors.Is(r.Validate(), strategy.ErrUnknownKind), ShouldBeTrue)
	})
}

func TestParseName(t *testing.T) {
	Convey("Given a benchmark solver name", t, func() {
		kind, values, err := strategy.ParseName("Cyclic[batch_size=32,deterministic_cycle=False,learning_rate=0.01,num_updates=100]")
		So(err, ShouldBeNil)
		So(kind, ShouldEqual, strategy.Cyclic)
		So(values["deterministic_cycle"], ShouldEqual, "False")

		p, err := strategy.FromName("Cyclic[deterministic_cycle=False]")
		So(err, ShouldBeNil)
		So(p.DeterministicCycle, ShouldBeFalse)
	})

	Convey("Given the legacy averaging name", t, func() {
		kind, _, err := strategy.ParseName("FederatedAveraging[learning_rate=0.01]")
		So(err, ShouldBeNil)
		So(kind, ShouldEqual, strategy.FedAvg)
	})

	Convey("Given malformed names", t, func() {
		_, _, err := strategy.ParseName("FedAvg")
		So(errors.Is(err, strategy.ErrInvalidName), ShouldBeTrue)
		_, _, err = strategy.ParseName("FedAvg[learning_rate]")
		So(errors.Is(err, strategy.ErrInvalidName), ShouldBeTrue)
		_, _, err = strategy.ParseName("FedSGD[lr=1]")
		So(errors.Is(err, strategy.ErrUnknownKind), ShouldBeTrue)
		_, err = strategy.FromName("FedAvg[momentum=0.9]")
		So(errors.Is(err, strategy.ErrInvalidName), ShouldBeTrue)
		_, err = strategy.FromName("FedAvg[batch_size=big]")
		So(errors.Is(err, strategy.ErrInvalidName), ShouldBeTrue)
	})
}

func TestGrid(t *testing.T) {
	Convey("Given the FedAdagrad default grid", t, func() {
		g := strategy.DefaultGrid(strategy.FedAdagrad)
		points := g.Expand()

		Convey("Then it is the cross product of learning rates", func() {
			So(g.Size(), ShouldEqual, 12)
			So(len(points), ShouldEqual, 12)
			So(points[0].LearningRate, ShouldEqual, 0.1)
			So(points[0].ServerLearningRate, ShouldEqual, 0.01)
			So(points[1].ServerLearningRate, ShouldEqual, 0.1)
			So(points[3].LearningRate, ShouldEqual, 0.01)
		})

		Convey("Then every point has a unique name", func() {
			seen := map[string]bool{}
			for _, p := range points {
				So(seen[p.Name()], ShouldBeFalse)
				seen[p.Name()] = true
				So(p.Validate(), ShouldBeNil)
			}
		})

		Convey("Then expanding does not alter the grid", func() {
			So(g.LearningRate, ShouldResemble, []float64{0.1, 0.01, 0.001, 0.0001})
		})
	})

	Convey("Given every default grid", t, func() {
		for _, k := range strategy.Kinds() {
			points := strategy.DefaultGrid(k).Expand()
			So(len(points), ShouldBeGreaterThan, 0)
			So(points[0].Kind, ShouldEqual, k)
		}
		So(len(strategy.DefaultGrid(strategy.FedProx).Expand()), ShouldEqual, 1)
	})

	Convey("Given a grid with an empty axis", t, func() {
		g := strategy.Grid{Kind: strategy.FedProx, Mu: []float64{0.1, 1}}
		points := g.Expand()
		So(len(points), ShouldEqual, 2)
		So(points[1].Mu, ShouldEqual, 1.0)
		So(points[1].LearningRate, ShouldEqual, 0.01)
	})
}
