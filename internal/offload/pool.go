// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package offload

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"
	"github.com/toeirei/dbdispatch/internal/logging"
)

const (
	DefaultWorkers   = 8
	DefaultQueueSize = 1024

	defaultSubmitBackoff = 2 * time.Millisecond
)

// Work is a unit of blocking work. It takes no arguments: everything it needs
// must be captured by value when the closure is built.
type Work[T any] func() (T, error)

// Options configures a Pool. Zero values select the defaults.
type Options struct {
	Name      string
	Workers   int
	QueueSize int

	// SubmitRetries switches admission to bounded waiting: when the queue is
	// full, Submit retries SubmitRetries times with exponential backoff
	// starting at SubmitBackoff and then fails with ErrSaturated. Zero means
	// Submit waits for room in the queue until its context ends.
	SubmitRetries int
	SubmitBackoff time.Duration
	Logger        *clog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Workers < 0 || o.QueueSize < 0 || o.SubmitRetries < 0 || o.SubmitBackoff < 0 {
		return o, fmt.Errorf("offload: negative option in %+v", o)
	}
	if o.Name == "" {
		o.Name = "default"
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize == 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.SubmitBackoff == 0 {
		o.SubmitBackoff = defaultSubmitBackoff
	}
	if o.Logger == nil {
		o.Logger = logging.L
	}
	return o, nil
}

const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

// job is the type-erased envelope a worker sees. run executes the work and
// returns the delivery of its outcome; deliver and fail both write the
// submission's private completion slot and the state machine guarantees at
// most one of them is reached.
type job struct {
	state    atomic.Int32
	run      func() (deliver func())
	fail     func(error)
	enqueued time.Time
}

// Pool executes units of work on a fixed number of worker goroutines fed by a
// bounded FIFO queue.
type Pool struct {
	opts  Options
	log   *clog.Logger
	queue chan *job

	mu        sync.RWMutex // guards closed and the close of queue
	closed    bool
	closing   chan struct{} // closed first by Close, wakes waiting submitters
	closeOnce sync.Once
	abort     atomic.Bool
	wg        sync.WaitGroup
	done      chan struct{}

	stats counters
}

// New starts a pool with opts.Workers workers.
func New(opts Options) (*Pool, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	p := &Pool{
		opts:  opts,
		log:   opts.Logger,
		queue:   make(chan *job, opts.QueueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		p.spawn()
	}
	p.log.Debug("offload: pool started", "pool", opts.Name, "workers", opts.Workers, "queue", opts.QueueSize)
	return p, nil
}

// Name returns the configured pool name.
func (p *Pool) Name() string { return p.opts.Name }

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.opts.Workers }

func (p *Pool) spawn() {
	p.wg.Add(1)
	p.stats.workers.Add(1)
	go p.worker()
}

func (p *Pool) worker() {
	clean := false
	defer func() {
		p.stats.workers.Add(-1)
		if !clean {
			// A unit of work called runtime.Goexit and took this goroutine
			// with it. Keep the pool at full strength.
			p.log.Warn("offload: replacing aborted worker", "pool", p.opts.Name)
			p.spawn()
		}
		p.wg.Done()
	}()
	for j := range p.queue {
		p.stats.queued.Add(-1)
		if !j.state.CompareAndSwap(jobQueued, jobRunning) {
			p.stats.abandoned.Add(1)
			continue
		}
		if p.abort.Load() {
			j.fail(channelError("execute", ErrPoolClosed, nil))
			continue
		}
		p.execute(j)
	}
	clean = true
}

func (p *Pool) execute(j *job) {
	p.stats.markBusy()
	p.stats.observeWait(time.Since(j.enqueued))
	var deliver func()
	defer func() {
		p.stats.busy.Add(-1)
		if deliver != nil {
			// Counted before delivery so a caller never sees its own
			// submission missing from Stats.
			p.stats.completed.Add(1)
			deliver()
			return
		}
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			stack := debug.Stack()
			p.log.Error("offload: unit of work panicked", "pool", p.opts.Name, "panic", r)
			j.fail(&ChannelError{
				Op:    "execute",
				Err:   ErrWorkerPanic,
				Cause: fmt.Errorf("panic: %v", r),
				Panic: r,
				Stack: stack,
			})
			return
		}
		p.stats.aborted.Add(1)
		j.fail(channelError("execute", ErrWorkerAborted, nil))
	}()
	deliver = j.run()
}

// Submit runs work on p and waits for its outcome. The error returned by work
// is passed through unchanged; failures of the pool itself are *ChannelError.
//
// If ctx ends while work is still queued, work is dropped and ErrCanceled is
// returned. If work is already running it is left to finish, its outcome is
// discarded and ErrDetached is returned.
func Submit[T any](ctx context.Context, p *Pool, work Work[T]) (T, error) {
	var zero T
	if p == nil {
		return zero, channelError("submit", ErrNotInitialized, nil)
	}
	if work == nil {
		return zero, channelError("submit", ErrNilWork, nil)
	}
	if err := ctx.Err(); err != nil {
		return zero, channelError("submit", ErrCanceled, err)
	}

	slot := make(chan outcome[T], 1)
	j := &job{
		run: func() func() {
			v, err := work()
			return func() { slot <- outcome[T]{val: v, err: err} }
		},
		fail: func(err error) {
			slot <- outcome[T]{err: err}
		},
	}
	if err := p.admit(ctx, j); err != nil {
		return zero, err
	}

	select {
	case out := <-slot:
		return out.val, out.err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return zero, channelError("submit", ErrCanceled, ctx.Err())
		}
		// Already picked up. Prefer a result that raced with cancellation.
		select {
		case out := <-slot:
			return out.val, out.err
		default:
		}
		p.stats.detached.Add(1)
		return zero, channelError("submit", ErrDetached, ctx.Err())
	}
}

type outcome[T any] struct {
	val T
	err error
}

// admit enqueues j. Without SubmitRetries it waits for room in the queue;
// otherwise it retries with exponential backoff while the queue is full.
func (p *Pool) admit(ctx context.Context, j *job) error {
	if p.opts.SubmitRetries == 0 {
		return p.enqueueWait(ctx, j)
	}
	backoff := retry.WithMaxRetries(uint64(p.opts.SubmitRetries), retry.NewExponential(p.opts.SubmitBackoff))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		if err := p.tryEnqueue(j); err != nil {
			if err.Retryable() {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		if ce.Retryable() {
			p.stats.rejected.Add(1)
		}
		return ce
	}
	return channelError("submit", ErrCanceled, err)
}

// enqueueWait blocks until j is in the queue, ctx ends or Close starts.
// Blocked senders hold the read lock, so Close wakes them through closing
// before it takes the write lock and closes the queue.
func (p *Pool) enqueueWait(ctx context.Context, j *job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.isClosing() {
		p.stats.rejected.Add(1)
		return channelError("submit", ErrPoolClosed, nil)
	}
	j.enqueued = time.Now()
	p.stats.queued.Add(1)
	select {
	case p.queue <- j:
		p.stats.submitted.Add(1)
		return nil
	default:
	}

	p.stats.saturated.Add(1)
	select {
	case p.queue <- j:
		p.stats.submitted.Add(1)
		return nil
	case <-p.closing:
		p.stats.queued.Add(-1)
		p.stats.rejected.Add(1)
		return channelError("submit", ErrPoolClosed, nil)
	case <-ctx.Done():
		p.stats.queued.Add(-1)
		return channelError("submit", ErrCanceled, ctx.Err())
	}
}

func (p *Pool) isClosing() bool {
	select {
	case <-p.closing:
		return true
	default:
		return false
	}
}

func (p *Pool) tryEnqueue(j *job) *ChannelError {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.stats.rejected.Add(1)
		return channelError("submit", ErrPoolClosed, nil)
	}
	j.enqueued = time.Now()
	p.stats.queued.Add(1)
	select {
	case p.queue <- j:
		p.stats.submitted.Add(1)
		return nil
	default:
		p.stats.queued.Add(-1)
		p.stats.saturated.Add(1)
		return channelError("submit", ErrSaturated, nil)
	}
}

// Close stops admission and waits for queued and running work to finish and
// for every worker to exit. It is safe to call more than once.
//
// If ctx ends first, work still in the queue fails with ErrPoolClosed instead
// of running; work already running is not interrupted.
func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		p.log.Debug("offload: draining pool", "pool", p.opts.Name, "queued", p.stats.queued.Load())
		go func() {
			p.wg.Wait()
			close(p.done)
			p.log.Debug("offload: pool stopped", "pool", p.opts.Name)
		}()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.abort.Store(true)
		return channelError("close", ErrPoolClosed, ctx.Err())
	}
}

// Done is closed once every worker has exited after Close.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
