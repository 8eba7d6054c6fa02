package future

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Producer is the zero-arg computation a RunnableFuture binds to a
// State. It receives a context it is expected to poll cooperatively: Go
// has no safe cross-goroutine thread interrupt, so RunnableFuture's
// advisory "interrupt" is realized by cancelling this context (the
// substitution the spec sanctions for languages without thread
// interruption — see SPEC_FULL.md Open Question #1).
type Producer[V any] func(ctx context.Context) (V, error)

// runnerToken marks the single goroutine allowed to execute the producer.
type runnerToken struct{}

// RunnableFuture binds a Producer to a State with at-most-once execution.
// Run is safe to call concurrently and from any goroutine: only the first
// caller whose CAS succeeds — and only while the future is not already
// done — actually invokes the producer.
type RunnableFuture[V any] struct {
	*State[V]

	producer Producer[V]
	ctx      context.Context
	cancel   context.CancelFunc
	runner   atomic.Pointer[runnerToken]
}

// NewRunnableFuture derives a cancellable context from parent and binds
// producer to a fresh State, wiring CompleteCancelled(true) to cancel
// that context.
func NewRunnableFuture[V any](parent context.Context, producer Producer[V]) *RunnableFuture[V] {
	ctx, cancel := context.WithCancel(parent)
	rf := &RunnableFuture[V]{
		State:    NewState[V](),
		producer: producer,
		ctx:      ctx,
		cancel:   cancel,
	}
	rf.State.SetInterruptHook(cancel)
	return rf
}

// Run executes the producer at most once. Calls after the first, or after
// the future is already terminal (e.g. cancelled before Run was reached),
// are no-ops. A panicking producer is recovered and surfaced as a
// Failure, never as a crash — the cancellation-arrived-mid-run race (the
// future going terminal while the producer is still computing) is
// resolved in CompleteSuccess/CompleteFailure's favor of "first transition
// wins": the producer's eventual return is simply ignored.
func (r *RunnableFuture[V]) Run() {
	if r.IsDone() {
		return
	}
	token := &runnerToken{}
	if !r.runner.CompareAndSwap(nil, token) {
		return
	}
	defer r.runner.Store(nil)
	defer r.cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.CompleteFailure(fmt.Errorf("producer panicked: %v", rec))
		}
	}()

	v, err := r.producer(r.ctx)
	if err != nil {
		r.CompleteFailure(err)
		return
	}
	r.CompleteSuccess(v)
}

var _ Future[any] = (*RunnableFuture[any])(nil)
