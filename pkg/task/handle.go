package task

import (
	"context"

	"github.com/jkilzi/futask/internal/models"
)

// Handle is the public facade returned by Submit: everything a caller
// needs to observe and control a scheduled definition without reaching
// into its Instance internals directly.
type Handle[V any] struct {
	def *Definition[V]
}

// Submit schedules def's first instance — due at Now()+its initial
// delay — on e, and returns a Handle observing it. Submit is a free
// function rather than an Engine method because Go methods cannot carry
// their own type parameters; Engine itself stays non-generic so one
// Engine can run definitions of many different V.
func Submit[V any](e *Engine, def *Definition[V]) (*Handle[V], error) {
	def.engine = e
	def.ordinal = e.nextOrdinal()

	start := e.clk.Now() + int64(def.initialDelay)
	inst := newInstance[V](context.Background(), def, start, 1)

	def.mu.Lock()
	def.current = inst
	def.mu.Unlock()

	if err := e.enqueue(inst); err != nil {
		def.mu.Lock()
		def.status = models.Finished
		def.current = nil
		def.mu.Unlock()
		return nil, err
	}
	return &Handle[V]{def: def}, nil
}

// Definition returns the TaskDefinition this handle observes.
func (h *Handle[V]) Definition() *Definition[V] { return h.def }

// Cancel, Pause, Resume delegate to the underlying Definition.
func (h *Handle[V]) Cancel(mayInterrupt bool) bool { return h.def.Cancel(mayInterrupt) }
func (h *Handle[V]) Pause() bool                   { return h.def.Pause() }
func (h *Handle[V]) Resume() bool                  { return h.def.Resume() }

// Current, History, and the execution counters mirror the Definition's.
func (h *Handle[V]) Current() *Instance[V]    { return h.def.Current() }
func (h *Handle[V]) History() []*Instance[V]  { return h.def.History() }
func (h *Handle[V]) ExecutionCount() int64    { return h.def.ExecutionCount() }
func (h *Handle[V]) SuccessCount() int64      { return h.def.SuccessCount() }
func (h *Handle[V]) FailureCount() int64      { return h.def.FailureCount() }
func (h *Handle[V]) CancelledCount() int64    { return h.def.CancelledCount() }
