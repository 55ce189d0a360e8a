package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pool runs chunk tasks on a bounded set of goroutines. Submission is
// non-blocking: a full queue fails fast with ErrBackpressure instead of
// stalling the control goroutine. Results come back on a single channel
// sized so workers never block on delivery.
type Pool struct {
	log     *zap.Logger
	tasks   chan Task
	results chan Result
	workers int
	timeout time.Duration

	nextID atomic.Uint64

	mu       sync.Mutex
	canceled map[TaskID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewPool creates a pool of `workers` goroutines (0 = GOMAXPROCS) with a task
// queue bounded at maxQueued. timeout is the per-task soft deadline; 0
// disables it.
func NewPool(workers, maxQueued int, timeout time.Duration, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if maxQueued <= 0 {
		maxQueued = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		log:      log,
		tasks:    make(chan Task, maxQueued),
		results:  make(chan Result, maxQueued+workers),
		workers:  workers,
		timeout:  timeout,
		canceled: make(map[TaskID]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit enqueues a task and returns its assigned ID. Fails with
// ErrBackpressure when the queue is full and ErrPoolClosed after Shutdown.
func (p *Pool) Submit(t Task) (TaskID, error) {
	if p.closed.Load() {
		return 0, ErrPoolClosed
	}
	t.ID = TaskID(p.nextID.Add(1))
	select {
	case p.tasks <- t:
		return t.ID, nil
	default:
		return 0, ErrBackpressure
	}
}

// Cancel is best-effort: a task that has not started is dropped when a worker
// picks it up; a running task completes and its result is discarded by the
// dispatcher's token check.
func (p *Pool) Cancel(id TaskID) {
	p.mu.Lock()
	p.canceled[id] = struct{}{}
	p.mu.Unlock()
}

func (p *Pool) takeCanceled(id TaskID) bool {
	p.mu.Lock()
	_, ok := p.canceled[id]
	if ok {
		delete(p.canceled, id)
	}
	p.mu.Unlock()
	return ok
}

// Results returns the channel of completed task results. Consumed only by
// the control goroutine.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// QueueLen returns the number of tasks waiting to start.
func (p *Pool) QueueLen() int { return len(p.tasks) }

// Shutdown stops accepting work and waits for running tasks to finish.
func (p *Pool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		if p.takeCanceled(t.ID) {
			p.log.Debug("dropping cancelled task",
				zap.Uint64("task", uint64(t.ID)),
				zap.Stringer("kind", t.Kind),
				zap.Stringer("coord", t.Coord))
			continue
		}
		p.run(t)
	}
}

func (p *Pool) run(t Task) {
	ctx := p.ctx
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	payload, err := t.Run(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = ErrTimeout
	}

	res := Result{
		TaskID:  t.ID,
		Kind:    t.Kind,
		Coord:   t.Coord,
		Token:   t.Token,
		Payload: payload,
		Err:     err,
	}
	select {
	case p.results <- res:
	case <-p.ctx.Done():
	}
}
