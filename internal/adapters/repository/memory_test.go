package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/fedbench/internal/adapters/repository"
	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/smartystreets/goconvey/convey"
)

func newRun(id string, at time.Time) *repository.Run {
	return &repository.Run{
		ID:        id,
		CreatedAt: at,
		Tracker:   convergence.NewTracker(convergence.NewSufficientProgress(), "value"),
	}
}

func TestMemoryStore(t *testing.T) {
	convey.Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx, repository.WithCapacity(3), repository.WithMetricsUpdateInterval(time.Millisecond))
		defer func() { _ = s.Close() }()
		t0 := time.Unix(100, 0)

		convey.Convey("When runs are created", func() {
			convey.So(s.Create(ctx, newRun("b", t0)), convey.ShouldBeNil)
			convey.So(s.Create(ctx, newRun("a", t0)), convey.ShouldBeNil)
			convey.So(s.Create(ctx, newRun("c", t0.Add(-time.Second))), convey.ShouldBeNil)

			convey.Convey("Then they are listed by creation time then id", func() {
				runs, err := s.List(ctx)
				convey.So(err, convey.ShouldBeNil)
				ids := make([]string, len(runs))
				for i, r := range runs {
					ids[i] = r.ID
				}
				convey.So(ids, convey.ShouldResemble, []string{"c", "a", "b"})
				convey.So(s.Count(ctx), convey.ShouldEqual, 3)
			})

			convey.Convey("Then a full store rejects new runs", func() {
				err := s.Create(ctx, newRun("d", t0))
				convey.So(errors.Is(err, repository.ErrCapacity), convey.ShouldBeTrue)
			})

			convey.Convey("Then duplicate ids are rejected", func() {
				err := s.Create(ctx, newRun("a", t0))
				convey.So(errors.Is(err, repository.ErrDuplicate), convey.ShouldBeTrue)
			})

			convey.Convey("Then a run can be fetched and deleted", func() {
				r, err := s.Get(ctx, "a")
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.ID, convey.ShouldEqual, "a")

				convey.So(s.Delete(ctx, "a"), convey.ShouldBeNil)
				_, err = s.Get(ctx, "a")
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
				convey.So(errors.Is(s.Delete(ctx, "a"), repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an invalid run is created", func() {
			convey.So(errors.Is(s.Create(ctx, nil), repository.ErrInvalid), convey.ShouldBeTrue)
			convey.So(errors.Is(s.Create(ctx, &repository.Run{ID: "x"}), repository.ErrInvalid), convey.ShouldBeTrue)
		})

		convey.Convey("When closed twice", func() {
			convey.So(s.Close(), convey.ShouldBeNil)
			convey.So(s.Close(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given concurrent writers", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx, repository.WithCapacity(1000))
		defer func() { _ = s.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Create(ctx, newRun(fmt.Sprintf("run-%d", i), time.Now()))
				_, _ = s.List(ctx)
			}(i)
		}
		wg.Wait()
		convey.So(s.Count(ctx), convey.ShouldEqual, 50)
	})
}
