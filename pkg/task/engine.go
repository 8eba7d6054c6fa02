package task

import (
	"container/heap"
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jkilzi/futask/internal/clock"
	fterrors "github.com/jkilzi/futask/pkg/errors"
)

// Engine is a ScheduledTaskEngine: a single dispatcher goroutine draining
// a scheduledStart-ordered priority queue, handing each due instance to a
// bounded pool of worker goroutines. Definitions submitted to it run
// independently of one another; only instances belonging to the same
// definition are ever serialized relative to each other (by construction:
// a definition never has more than one instance queued or running at
// once).
type Engine struct {
	workers int
	clk     clock.Clock
	log     *zap.SugaredLogger

	mu      sync.Mutex
	queue   priorityQueue
	busy    int
	closed  bool
	stopped chan struct{}
	wake    chan struct{}
	wg      sync.WaitGroup

	ordinalSeq atomic.Int64
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithWorkerCount bounds how many instances the engine runs concurrently.
// The default is runtime.NumCPU().
func WithWorkerCount(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithClock installs the time source the engine and its rescheduler
// policies consult. The default is clock.Default. Tests install a
// clock.Fake to control timing deterministically.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clk = c }
}

// NewEngine starts an Engine's dispatcher goroutine and returns it ready
// to accept Submit calls.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		workers: runtime.NumCPU(),
		clk:     clock.Default,
		log:     zap.S().Named("task_engine"),
		stopped: make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	heap.Init(&e.queue)
	go e.run()
	return e
}

func (e *Engine) nextOrdinal() int64 { return e.ordinalSeq.Add(1) }

// enqueue adds item to the dispatch queue and wakes the dispatcher.
// Fails with RejectedError once the engine has been shut down.
func (e *Engine) enqueue(item queueItem) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Debugw("enqueue rejected: engine is shut down", "scheduledStart", item.scheduledStart())
		return &fterrors.RejectedError{Cause: fmt.Errorf("engine is shut down")}
	}
	heap.Push(&e.queue, item)
	e.mu.Unlock()
	e.wakeDispatcher()
	return nil
}

// removeFromQueue removes item from the pending queue if it is still
// there (i.e. the dispatcher has not already popped it). Returns whether
// it was found and removed.
func (e *Engine) removeFromQueue(item queueItem) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for idx, it := range e.queue {
		if it == item {
			heap.Remove(&e.queue, idx)
			return true
		}
	}
	return false
}

func (e *Engine) wakeDispatcher() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// run is the engine's single dispatcher loop: pop the earliest-due item,
// wait out the remainder of its delay (interruptible by a wake, so a
// newly-enqueued earlier item is never left waiting behind a stale
// timer), then hand it to a worker goroutine once a slot is free.
func (e *Engine) run() {
	defer close(e.stopped)
	for {
		e.mu.Lock()
		if e.closed && e.queue.Len() == 0 && e.busy == 0 {
			e.mu.Unlock()
			return
		}
		if e.queue.Len() == 0 || e.busy >= e.workers {
			e.mu.Unlock()
			<-e.wake
			continue
		}

		head := e.queue[0]
		wait := head.scheduledStart() - e.clk.Now()
		if wait > 0 {
			e.mu.Unlock()
			timer := time.NewTimer(time.Duration(wait))
			select {
			case <-timer.C:
			case <-e.wake:
				timer.Stop()
			}
			continue
		}

		item := heap.Pop(&e.queue).(queueItem)
		e.busy++
		e.mu.Unlock()

		e.wg.Add(1)
		go e.runItem(item)
	}
}

func (e *Engine) runItem(item queueItem) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		e.busy--
		e.mu.Unlock()
		e.wakeDispatcher()
	}()

	if !item.tryStart() {
		return
	}
	item.runAndReport(e.clk)
}

// Shutdown refuses further submissions, cancels every instance still
// waiting in the queue (without running them), and waits for whatever is
// currently executing to finish — or for ctx to be cancelled first.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pending := make([]queueItem, len(e.queue))
	copy(pending, e.queue)
	e.queue = e.queue[:0]
	e.mu.Unlock()

	for _, item := range pending {
		item.cancelPending(e.clk)
	}
	e.wakeDispatcher()

	select {
	case <-e.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.wg.Wait()
	return nil
}
