package future

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	fterrors "github.com/jkilzi/futask/pkg/errors"
	"github.com/jkilzi/futask/internal/models"
)

// State is the single-assignment result cell at the heart of every
// future in this package: a value, a cause, and a disposition that moves
// from Pending to exactly one terminal value. It implements Future[V]
// directly — RunnableFuture embeds it to add producer execution.
//
// Completion protocol: the goroutine that wins the transition (the only
// one to observe Pending under mu) publishes value/cause, stores the new
// disposition, closes done (waking every blocked Await/Get), then —
// after releasing mu — dispatches the drained listener snapshot. No user
// callback ever runs while mu is held.
type State[V any] struct {
	mu   sync.Mutex
	done chan struct{}

	// disp is written once, under mu, and read without locking from the
	// non-blocking predicates — an atomic store/load gives those readers
	// a correct happens-before view of value/cause without contending mu.
	disp atomic.Int32

	value V
	cause error

	listeners []listenerEntry[V]

	// onInterrupt is the subclass hook invoked by CompleteCancelled(true).
	// RunnableFuture wires this to its producer's context.CancelFunc.
	onInterrupt func()
}

// NewState returns a pending State.
func NewState[V any]() *State[V] {
	return &State[V]{done: make(chan struct{})}
}

// SetInterruptHook installs the callback CompleteCancelled(true) invokes
// when it transitions a still-pending state. Must be called before the
// state can complete; RunnableFuture calls it at construction time.
func (s *State[V]) SetInterruptHook(hook func()) {
	s.onInterrupt = hook
}

func (s *State[V]) disposition() models.Disposition {
	return models.Disposition(s.disp.Load())
}

// CompleteSuccess transitions Pending -> Success, publishing v. Returns
// whether this call performed the transition.
func (s *State[V]) CompleteSuccess(v V) bool {
	return s.complete(models.Success, func() { s.value = v }, false)
}

// CompleteFailure transitions Pending -> Failure, publishing cause.
func (s *State[V]) CompleteFailure(cause error) bool {
	return s.complete(models.Failure, func() { s.cause = cause }, false)
}

// CompleteCancelled transitions Pending -> Cancelled. If mayInterrupt and
// an interrupt hook is registered, the hook runs after the transition is
// published but before listeners are dispatched.
func (s *State[V]) CompleteCancelled(mayInterrupt bool) bool {
	return s.complete(models.Cancelled, func() {
		s.cause = &fterrors.CancellationError{}
	}, mayInterrupt)
}

func (s *State[V]) complete(d models.Disposition, publish func(), mayInterrupt bool) bool {
	s.mu.Lock()
	if s.disposition() != models.Pending {
		s.mu.Unlock()
		return false
	}
	publish()
	s.disp.Store(int32(d))
	listeners := s.listeners
	s.listeners = nil
	hook := s.onInterrupt
	close(s.done)
	s.mu.Unlock()

	if mayInterrupt && hook != nil {
		hook()
	}
	dispatchAll[V](s, listeners)
	return true
}

// Cancel implements Cancellable.
func (s *State[V]) Cancel(mayInterrupt bool) bool {
	return s.CompleteCancelled(mayInterrupt)
}

// AddListener implements Future.AddListener.
func (s *State[V]) AddListener(cb Listener[V], ctx Executor) {
	s.mu.Lock()
	if s.disposition() == models.Pending {
		s.listeners = append(s.listeners, listenerEntry[V]{cb: cb, ctx: ctx})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	dispatchOne[V](s, listenerEntry[V]{cb: cb, ctx: ctx})
}

// Await implements Awaitable.
func (s *State[V]) Await(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return &fterrors.InterruptedError{Cause: ctx.Err()}
	}
}

// AwaitTimeout implements Awaitable.
func (s *State[V]) AwaitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.done:
		return true, nil
	case <-ctx.Done():
		return false, &fterrors.InterruptedError{Cause: ctx.Err()}
	case <-timer.C:
		return false, nil
	}
}

// AwaitUninterruptibly implements Awaitable: it ignores cancellation and
// blocks until the future is terminal, the Go substitute for the spec's
// "restores the interrupt flag on return" uninterruptible variant.
func (s *State[V]) AwaitUninterruptibly() {
	<-s.done
}

// IsDone implements Awaitable.
func (s *State[V]) IsDone() bool { return s.disposition() != models.Pending }

// IsSuccessful reports whether the future completed with a value.
func (s *State[V]) IsSuccessful() bool { return s.disposition() == models.Success }

// IsFailed reports whether the future completed with an error.
func (s *State[V]) IsFailed() bool { return s.disposition() == models.Failure }

// IsCancelled reports whether the future was cancelled. It is true only
// after the transition fully completes, so IsCancelled() && IsDone() may
// be assumed together.
func (s *State[V]) IsCancelled() bool { return s.disposition() == models.Cancelled }

// Result returns the value iff IsSuccessful(), else an IllegalStateError.
func (s *State[V]) Result() (V, error) {
	var zero V
	if s.disposition() != models.Success {
		return zero, &fterrors.IllegalStateError{Msg: "Result() called on a non-successful future"}
	}
	return s.value, nil
}

// Failure returns the cause iff IsFailed(), else an IllegalStateError.
func (s *State[V]) Failure() error {
	if s.disposition() != models.Failure {
		return &fterrors.IllegalStateError{Msg: "Failure() called on a non-failed future"}
	}
	return s.cause
}

// Get awaits completion then returns the value or a disposition-specific
// error.
func (s *State[V]) Get(ctx context.Context) (V, error) {
	var zero V
	if err := s.Await(ctx); err != nil {
		return zero, err
	}
	return s.outcome()
}

// GetTimeout is Get bounded by d.
func (s *State[V]) GetTimeout(ctx context.Context, d time.Duration) (V, error) {
	var zero V
	ok, err := s.AwaitTimeout(ctx, d)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, &fterrors.TimeoutError{}
	}
	return s.outcome()
}

func (s *State[V]) outcome() (V, error) {
	var zero V
	switch s.disposition() {
	case models.Success:
		return s.value, nil
	case models.Failure:
		return zero, &fterrors.ExecutionFailure{Cause: s.cause}
	case models.Cancelled:
		return zero, &fterrors.CancellationError{}
	default:
		// unreachable: Await only returns nil once done is closed, which
		// happens strictly after disp is stored.
		return zero, &fterrors.IllegalStateError{Msg: "outcome observed while still pending"}
	}
}

// Visit requires a terminal future and calls exactly one of v's methods.
func (s *State[V]) Visit(v Visitor[V]) error {
	switch s.disposition() {
	case models.Success:
		v.Successful(s.value)
	case models.Failure:
		v.Failed(s.cause)
	case models.Cancelled:
		if cv, ok := v.(cancelledVisitor); ok {
			cv.Cancelled()
		} else {
			v.Failed(&fterrors.CancellationError{})
		}
	default:
		return &fterrors.IllegalStateError{Msg: "Visit() called on a pending future"}
	}
	return nil
}

var _ Future[any] = (*State[any])(nil)
