package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/podium/internal/adapters/mq/queue"
	worker "github.com/okian/podium/internal/adapters/mq/worker"
	model "github.com/okian/podium/internal/domain/model"
	logging "github.com/okian/podium/pkg/logger"
)

const today = "2026-10-19"

var noon = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type mockQueue struct {
	ch chan queue.Update
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Update, 10)}
}

func (m *mockQueue) Dequeue(context.Context) <-chan queue.Update { return m.ch }

func (m *mockQueue) Close() error {
	close(m.ch)
	return nil
}

// mockRanker fails the first failures calls and records every applied write.
type mockRanker struct {
	mu       sync.Mutex
	failures int
	calls    int
	applied  map[string]float64
}

func newMockRanker(failures int) *mockRanker {
	return &mockRanker{failures: failures, applied: make(map[string]float64)}
}

func (m *mockRanker) UpsertIfBetter(_ context.Context, day, member string, value float64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return 0, false
	}
	if old, ok := m.applied[day+"/"+member]; !ok || value > old {
		m.applied[day+"/"+member] = value
	}
	return 0, true
}

func (m *mockRanker) get(day, member string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.applied[day+"/"+member]
	return v, ok
}

func (m *mockRanker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func upd(day, member string, value float64) model.RankingUpdate {
	return model.RankingUpdate{Day: day, Member: member, Value: value, QueuedAt: noon}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a replay worker", t, func() {
		clock := func() time.Time { return noon }
		q := newMockQueue()

		convey.Convey("When the fast store accepts the update", func() {
			r := newMockRanker(0)
			w := worker.NewInMemoryWorker(q, r, worker.WithClock(clock), worker.WithLogger(logging.Nop()))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			q.ch <- upd(today, "ann", 200)

			convey.Convey("Then it is applied once", func() {
				convey.So(eventually(func() bool { _, ok := r.get(today, "ann"); return ok }), convey.ShouldBeTrue)
				v, _ := r.get(today, "ann")
				convey.So(v, convey.ShouldEqual, 200)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the fast store is briefly down", func() {
			r := newMockRanker(2)
			w := worker.NewInMemoryWorker(q, r,
				worker.WithClock(clock),
				worker.WithBackoff(time.Millisecond),
				worker.WithMaxAttempts(5),
			)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			q.ch <- upd(today, "ann", 200)

			convey.Convey("Then the update is retried until it lands", func() {
				convey.So(eventually(func() bool { _, ok := r.get(today, "ann"); return ok }), convey.ShouldBeTrue)
				convey.So(r.callCount(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the fast store stays down", func() {
			r := newMockRanker(100)
			w := worker.NewInMemoryWorker(q, r,
				worker.WithClock(clock),
				worker.WithBackoff(time.Millisecond),
				worker.WithMaxAttempts(3),
			)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			q.ch <- upd(today, "ann", 200)
			q.ch <- upd(today, "bob", 100)

			convey.Convey("Then each update is dropped after the attempt budget", func() {
				convey.So(eventually(func() bool { return r.callCount() == 6 }), convey.ShouldBeTrue)
				_, ok := r.get(today, "ann")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When an update belongs to a past day", func() {
			r := newMockRanker(0)
			w := worker.NewInMemoryWorker(q, r, worker.WithClock(clock))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			q.ch <- upd("2026-10-18", "ann", 200)
			q.ch <- upd(today, "bob", 100)

			convey.Convey("Then it is discarded without touching the store", func() {
				convey.So(eventually(func() bool { _, ok := r.get(today, "bob"); return ok }), convey.ShouldBeTrue)
				_, stale := r.get("2026-10-18", "ann")
				convey.So(stale, convey.ShouldBeFalse)
				convey.So(r.callCount(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, newMockRanker(0))
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker stops", func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
				defer done()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a replay pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		r := newMockRanker(0)
		pool := worker.NewPool(3, q, r, worker.WithClock(func() time.Time { return noon }))

		convey.Convey("When created with a non-positive count", func() {
			p := worker.NewPool(0, q, r)

			convey.Convey("Then it uses the default size", func() {
				convey.So(p.Size(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When many updates are queued", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for i := 0; i < 20; i++ {
				q.Enqueue(ctx, upd(today, "ann", float64(i)))
			}

			convey.Convey("Then the best value survives", func() {
				convey.So(eventually(func() bool { return r.callCount() == 20 }), convey.ShouldBeTrue)
				v, _ := r.get(today, "ann")
				convey.So(v, convey.ShouldEqual, 19)
			})

			convey.Convey("Then shutdown closes the queue", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
