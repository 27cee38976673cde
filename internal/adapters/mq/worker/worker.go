// Package worker replays queued daily ranking updates against the fast store
// once it is reachable again.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	defaultBackoff      = 2 * time.Second
	defaultMaxAttempts  = 5
	poolShutdownTimeout = 30 * time.Second
)

// Update is what workers read off the queue.
type Update = queue.Update

// Ranker applies a daily ranking write.
type Ranker interface {
	UpsertIfBetter(ctx context.Context, day, member string, value float64) (rank int64, ok bool)
}

// Queue defines how workers receive updates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Update
}

// Worker replays updates until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the update in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	ranker      Ranker
	name        string
	backoff     time.Duration
	maxAttempts int
	now         func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, ranker Ranker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		ranker:      ranker,
		name:        "replay",
		backoff:     defaultBackoff,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.GetOrNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	updates := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := w.replay(ctx, u); err != nil {
				w.logger.Warn(ctx, "replay dropped",
					logger.String("day", u.Day),
					logger.String("member", u.Member),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// replay applies u, retrying with linear backoff. Updates for a day that is
// no longer current are discarded since their bucket is gone or stale.
func (w *InMemoryWorker) replay(ctx context.Context, u Update) error {
	for attempt := 1; ; attempt++ {
		if u.Day != identity.DayKey(w.now()) {
			metrics.RecordReplayExpired()
			return ErrExpired
		}
		if _, ok := w.ranker.UpsertIfBetter(ctx, u.Day, u.Member, u.Value); ok {
			metrics.RecordReplayApplied()
			w.logger.Debug(ctx, "replayed daily update",
				logger.String("member", u.Member),
				logger.Int("attempt", attempt),
				logger.Duration("delay", w.now().Sub(u.QueuedAt)))
			return nil
		}
		if attempt >= w.maxAttempts {
			metrics.RecordErrorByComponent("worker", "replay_exhausted")
			return fmt.Errorf("%w after %d attempts", ErrExhausted, attempt)
		}

		metrics.RecordReplayRetry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.shutdown:
			return ErrStopped
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
}

// Pool manages multiple workers draining one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers sharing opts.
func NewPool(workerCount int, q Queue, ranker Ranker, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.GetOrNop().Named("replay-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("replay-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, ranker, workerOpts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Warn(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
