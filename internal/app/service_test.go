package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/fedbench/internal/adapters/repository"
	service "github.com/okian/fedbench/internal/app"
	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/okian/fedbench/internal/domain/objective"
	"github.com/okian/fedbench/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func value(v float64) objective.Record {
	return objective.NewRecord(map[string]float64{"value": v})
}

func started(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithCapacity(4), service.WithDedupeSize(16))

		Convey("Then calls fail before start", func() {
			_, err := svc.CreateRun(context.Background(), service.Settings{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When starting and stopping", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.GetStats()["capacity"], ShouldEqual, 4)

			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
			svc.Stop()
		})
	})
}

func TestService_CreateRun(t *testing.T) {
	Convey("Given a started service with defaults", t, func() {
		ctx := context.Background()
		svc := started(service.WithDefaults(service.Settings{
			Patience:     4,
			Eps:          0.05,
			KeyToMonitor: "value",
			MaxRuns:      10,
		}))
		defer svc.Stop()

		Convey("When creating a run with empty settings", func() {
			run, err := svc.CreateRun(ctx, service.Settings{})

			Convey("Then defaults fill every field", func() {
				So(err, ShouldBeNil)
				So(run.ID, ShouldNotBeEmpty)
				So(run.Settings.Patience, ShouldEqual, 4)
				So(run.Settings.Eps, ShouldEqual, 0.05)
				So(run.Settings.MaxRuns, ShouldEqual, 10)
				So(run.Reason, ShouldEqual, convergence.ReasonRunning)
				So(run.Stopped, ShouldBeFalse)
			})
		})

		Convey("When creating with explicit settings", func() {
			run, err := svc.CreateRun(ctx, service.Settings{Patience: 2, KeyToMonitor: "loss"})
			So(err, ShouldBeNil)
			So(run.Settings.Patience, ShouldEqual, 2)
			So(run.Settings.KeyToMonitor, ShouldEqual, "loss")
		})

		Convey("When the settings are invalid", func() {
			for _, in := range []service.Settings{
				{Patience: -1},
				{Eps: 1.5},
				{Eps: -0.1},
				{MaxRuns: -3},
				{Timeout: -time.Second},
			} {
				_, err := svc.CreateRun(ctx, in)
				So(errors.Is(err, service.ErrInvalidSettings), ShouldBeTrue)
			}
		})
	})

	Convey("Given a service at capacity", t, func() {
		ctx := context.Background()
		svc := started(service.WithCapacity(1))
		defer svc.Stop()

		_, err := svc.CreateRun(ctx, service.Settings{})
		So(err, ShouldBeNil)
		_, err = svc.CreateRun(ctx, service.Settings{})
		So(errors.Is(err, repository.ErrCapacity), ShouldBeTrue)
	})
}

func TestService_Observe(t *testing.T) {
	Convey("Given a run with patience 3", t, func() {
		ctx := context.Background()
		svc := started()
		defer svc.Stop()

		run, err := svc.CreateRun(ctx, service.Settings{Patience: 3, Eps: 0.01})
		So(err, ShouldBeNil)

		Convey("When the objective improves", func() {
			for i, v := range []float64{1.0, 0.7, 0.5} {
				obs, err := svc.Observe(ctx, run.ID, "", value(v))
				So(err, ShouldBeNil)
				So(obs.Decision.Stop, ShouldBeFalse)
				So(obs.Round, ShouldEqual, i)
			}

			Convey("Then the detail carries the history", func() {
				d, err := svc.GetRun(ctx, run.ID)
				So(err, ShouldBeNil)
				So(len(d.History), ShouldEqual, 3)
				So(d.Rounds, ShouldEqual, 2)
				So(d.Best, ShouldEqual, 0.5)
			})
		})

		Convey("When the objective diverges", func() {
			_, _ = svc.Observe(ctx, run.ID, "", value(1.0))
			obs, err := svc.Observe(ctx, run.ID, "", value(2.0))
			So(err, ShouldBeNil)
			So(obs.Decision.Stop, ShouldBeTrue)
			So(obs.Decision.Reason, ShouldEqual, convergence.ReasonDiverged)

			Convey("Then later records are rejected", func() {
				_, err := svc.Observe(ctx, run.ID, "", value(0.5))
				So(errors.Is(err, convergence.ErrStopped), ShouldBeTrue)
			})

			Convey("Then stats count the stop reason", func() {
				stats := svc.GetStats()
				So(stats["runs"], ShouldEqual, 1)
				So(stats["active_runs"], ShouldEqual, 0)
				So(stats["stopped_by_reason"], ShouldResemble, map[string]int{"diverged": 1})
			})
		})

		Convey("When a submission key repeats", func() {
			first, err := svc.Observe(ctx, run.ID, "round-0", value(1.0))
			So(err, ShouldBeNil)
			So(first.Duplicate, ShouldBeFalse)

			again, err := svc.Observe(ctx, run.ID, "round-0", value(1.0))

			Convey("Then the record is not applied twice", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Round, ShouldEqual, 0)
				d, _ := svc.GetRun(ctx, run.ID)
				So(len(d.History), ShouldEqual, 1)
			})
		})

		Convey("When a keyed submission fails", func() {
			_, err := svc.Observe(ctx, run.ID, "k", value(0))
			So(errors.Is(err, convergence.ErrZeroStartObjective), ShouldBeTrue)

			Convey("Then the key can be retried", func() {
				obs, err := svc.Observe(ctx, run.ID, "k", value(1))
				So(err, ShouldBeNil)
				So(obs.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the record is malformed", func() {
			_, err := svc.Observe(ctx, run.ID, "", objective.NewRecord(map[string]float64{"loss": 1}))
			So(errors.Is(err, objective.ErrMissingKey), ShouldBeTrue)
		})

		Convey("When the run is unknown", func() {
			_, err := svc.Observe(ctx, "nope", "", value(1))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_ListAndDelete(t *testing.T) {
	Convey("Given three runs", t, func() {
		ctx := context.Background()
		now := time.Unix(100, 0)
		svc := started(service.WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		}))
		defer svc.Stop()

		var ids []string
		for i := 0; i < 3; i++ {
			r, err := svc.CreateRun(ctx, service.Settings{})
			So(err, ShouldBeNil)
			ids = append(ids, r.ID)
		}

		Convey("Then listing follows creation order", func() {
			runs, err := svc.ListRuns(ctx)
			So(err, ShouldBeNil)
			So(len(runs), ShouldEqual, 3)
			for i, r := range runs {
				So(r.ID, ShouldEqual, ids[i])
			}
		})

		Convey("When one is deleted", func() {
			So(svc.DeleteRun(ctx, ids[1]), ShouldBeNil)

			Convey("Then it is gone", func() {
				_, err := svc.GetRun(ctx, ids[1])
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.DeleteRun(ctx, ids[1]), repository.ErrNotFound), ShouldBeTrue)
				runs, _ := svc.ListRuns(ctx)
				So(len(runs), ShouldEqual, 2)
			})
		})
	})
}
