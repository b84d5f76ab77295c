package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/fedbench/internal/adapters/mq/queue"
	"github.com/okian/fedbench/internal/adapters/mq/worker"
	"github.com/okian/fedbench/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestPool_DrainsQueue(t *testing.T) {
	convey.Convey("Given a pool of three workers on a filled queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue[int](queue.WithCapacity(20))
		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, i), convey.ShouldBeTrue)
		}
		_ = q.Close()

		var mu sync.Mutex
		seen := map[int]bool{}
		pool := worker.NewPool[int](3, q, func(_ context.Context, j int) error {
			mu.Lock()
			defer mu.Unlock()
			seen[j] = true
			return nil
		}, worker.WithName("sweep"), worker.WithLogger(logger.Nop()))

		convey.Convey("When the workers run to completion", func() {
			pool.Start(ctx)
			pool.Wait()

			convey.Convey("Then every job is processed exactly once", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(len(seen), convey.ShouldEqual, 20)
			})
		})
	})
}

func TestPool_Errors(t *testing.T) {
	convey.Convey("Given handlers that fail or panic", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue[int](queue.WithCapacity(4))
		for i := 0; i < 4; i++ {
			_ = q.Enqueue(ctx, i)
		}
		_ = q.Close()

		var done atomic.Int32
		pool := worker.NewPool[int](2, q, func(_ context.Context, j int) error {
			defer done.Add(1)
			switch j {
			case 1:
				return errors.New("boom")
			case 2:
				panic("bad job")
			}
			return nil
		})
		pool.Start(ctx)
		pool.Wait()

		convey.Convey("Then the pool keeps going", func() {
			convey.So(done.Load(), convey.ShouldEqual, 4)
		})
	})
}

func TestPool_Shutdown(t *testing.T) {
	convey.Convey("Given a pool waiting on an open queue", t, func() {
		q := queue.NewInMemoryQueue[int]()
		pool := worker.NewPool[int](0, q, func(context.Context, int) error { return nil })
		pool.Start(context.Background())

		convey.Convey("When shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then every worker exits", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker stuck in a job", t, func() {
		q := queue.NewInMemoryQueue[int]()
		release := make(chan struct{})
		started := make(chan struct{})
		pool := worker.NewPool[int](1, q, func(context.Context, int) error {
			close(started)
			<-release
			return nil
		})
		pool.Start(context.Background())
		_ = q.Enqueue(context.Background(), 1)
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := pool.Shutdown(ctx)
		close(release)

		convey.So(errors.Is(err, worker.ErrShutdownTimeout), convey.ShouldBeTrue)
		pool.Wait()
	})

	convey.Convey("Given a cancelled context", t, func() {
		q := queue.NewInMemoryQueue[int]()
		ctx, cancel := context.WithCancel(context.Background())
		pool := worker.NewPool[int](2, q, func(context.Context, int) error { return nil })
		pool.Start(ctx)
		cancel()
		pool.Wait()
		convey.So(q.IsClosed(), convey.ShouldBeFalse)
	})
}
