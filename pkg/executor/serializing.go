package executor

import (
	"context"
	"sync"

	"github.com/jkilzi/futask/pkg/future"
)

// SerializingExecutor runs tasks submitted under the same key in FIFO
// order while letting different keys run concurrently. It is backed by
// one queue per key plus a "drain scheduled" bit: the first Execute for a
// newly-quiet key finds that bit clear under the key's lock, sets it, and
// submits a drain loop to the
// underlying Host; every Execute after that just enqueues, trusting the
// already-running (or about-to-run) drain loop to pick it up. This is the
// same queue+dispatch shape as the teacher's Scheduler.workQueue/dispatch
// pair, specialized from "N workers pulling one shared queue" to "one
// drain goroutine per active key".
type SerializingExecutor[K comparable] struct {
	host Host

	mu    sync.Mutex
	state map[K]*keyState
}

type keyState struct {
	mu      sync.Mutex
	pending []func()
	// draining is true while a drain task is scheduled or running for
	// this key; read and written under this mutex, in the same critical
	// section as the enqueue (Execute) or the empty-queue check (drain), to
	// keep the "is a drain owed" decision and the queue contents atomic
	// together.
	draining bool
}

// NewSerializingExecutor wraps host so SerializingExecutor.Execute
// preserves FIFO order per key.
func NewSerializingExecutor[K comparable](host Host) *SerializingExecutor[K] {
	return &SerializingExecutor[K]{host: host, state: make(map[K]*keyState)}
}

// Execute enqueues task for key k. If no drain loop is currently owed for
// k, this call submits one to the underlying host; otherwise the task is
// picked up by whichever drain loop is already active.
func (s *SerializingExecutor[K]) Execute(k K, task func()) {
	s.mu.Lock()
	ks, ok := s.state[k]
	if !ok {
		ks = &keyState{}
		s.state[k] = ks
	}
	ks.mu.Lock()
	ks.pending = append(ks.pending, task)
	needsDrain := !ks.draining
	if needsDrain {
		ks.draining = true
	}
	ks.mu.Unlock()
	s.mu.Unlock()

	if needsDrain {
		s.host.Execute(func() { s.drain(ks) })
	}
}

// drain pops and runs tasks for ks until its queue is empty, then clears
// the draining bit under the same lock as the final pop to avoid losing a
// task enqueued in the narrow window between the last pop and the bit
// being cleared.
func (s *SerializingExecutor[K]) drain(ks *keyState) {
	for {
		ks.mu.Lock()
		if len(ks.pending) == 0 {
			ks.draining = false
			ks.mu.Unlock()
			return
		}
		task := ks.pending[0]
		ks.pending = ks.pending[1:]
		ks.mu.Unlock()

		task()
	}
}

// Submit runs producer under key k, in FIFO order relative to every other
// Submit/Execute on the same key, and returns an observable future.
func (s *SerializingExecutor[K]) Submit(ctx context.Context, k K, producer future.Producer[any]) future.Future[any] {
	rf := future.NewRunnableFuture[any](ctx, producer)
	s.Execute(k, rf.Run)
	return rf
}

// keyBoundExecutor adapts a fixed key of a SerializingExecutor into a
// plain Host, for callers that want to hand a key-scoped executor to code
// that only knows about Host.
type keyBoundExecutor[K comparable] struct {
	parent *SerializingExecutor[K]
	key    K
}

// NewExecutorFor returns a Host bound to key k: every Execute on it is
// equivalent to s.Execute(k, task).
func (s *SerializingExecutor[K]) NewExecutorFor(k K) Host {
	return &keyBoundExecutor[K]{parent: s, key: k}
}

func (e *keyBoundExecutor[K]) Execute(task func()) {
	e.parent.Execute(e.key, task)
}
