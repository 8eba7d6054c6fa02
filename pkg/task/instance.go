package task

import (
	"context"
	"sync/atomic"

	"github.com/jkilzi/futask/internal/clock"
	"github.com/jkilzi/futask/internal/models"
	"github.com/jkilzi/futask/pkg/future"
	"github.com/jkilzi/futask/pkg/reschedule"
)

// Instance is one execution of a Definition: a RunnableFuture plus the
// scheduling metadata the engine and the definition's history need.
// Exactly one of {is the definition's current instance} or {is in its
// history} holds at any time after scheduling (enforced by Definition,
// which moves an instance from current to history's head on completion).
type Instance[V any] struct {
	*future.RunnableFuture[V]

	def         *Definition[V]
	scheduledAt int64
	idx         int64

	actualStart atomic.Int64
	endTime     atomic.Int64
}

func newInstance[V any](ctx context.Context, def *Definition[V], scheduledAt, idx int64) *Instance[V] {
	return &Instance[V]{
		RunnableFuture: future.NewRunnableFuture[V](ctx, def.producer),
		def:            def,
		scheduledAt:    scheduledAt,
		idx:            idx,
	}
}

// ScheduledAt is the monotonic-nanosecond instant this instance was due
// to start.
func (i *Instance[V]) ScheduledAt() int64 { return i.scheduledAt }

// Index is this instance's position in its definition's execution
// sequence, starting at 1.
func (i *Instance[V]) Index() int64 { return i.idx }

// ActualStart is the instant the producer actually began running, or 0
// if it has not started yet.
func (i *Instance[V]) ActualStart() int64 { return i.actualStart.Load() }

// EndTime is the instant this instance reached a terminal disposition, or
// 0 if still pending.
func (i *Instance[V]) EndTime() int64 { return i.endTime.Load() }

// Definition is the TaskDefinition that owns this instance.
func (i *Instance[V]) Definition() *Definition[V] { return i.def }

// scheduledStart/ordinal/seq satisfy the engine's unexported queueItem
// contract used for heap ordering and dispatch, independent of V.
func (i *Instance[V]) scheduledStart() int64 { return i.scheduledAt }
func (i *Instance[V]) ordinal() int64        { return i.def.ordinal }
func (i *Instance[V]) seq() int64            { return i.idx }

// tryStart is the engine worker's pre-run check: it consults the owning
// definition's lifecycle status before the producer is invoked, so a
// pause()/cancel() that raced ahead of the dispatcher still takes effect.
// It satisfies queueItem.
func (i *Instance[V]) tryStart() bool {
	return i.def.tryStartCurrent(i)
}

// cancelPending transitions a not-yet-run instance straight to Cancelled,
// without ever invoking the producer, and reports it to the definition.
// Used by Engine.Shutdown to drain the queue, and by Definition.Cancel for
// an instance it removed from the queue. It satisfies queueItem.
func (i *Instance[V]) cancelPending(clk clock.Clock) {
	i.endTime.Store(clk.Now())
	i.RunnableFuture.Cancel(false)
	i.def.onInstanceComplete(i)
}

// runAndReport runs the producer, stamping actualStart/endTime around it,
// then hands the completed instance back to its definition for the
// post-completion bookkeeping and scheduling decision (§4.7 step 5).
// It satisfies queueItem.
func (i *Instance[V]) runAndReport(clk clock.Clock) {
	i.actualStart.Store(clk.Now())
	i.RunnableFuture.Run()
	i.endTime.Store(clk.Now())
	i.def.onInstanceComplete(i)
}

func (i *Instance[V]) disposition() models.Disposition {
	switch {
	case i.IsSuccessful():
		return models.Success
	case i.IsFailed():
		return models.Failure
	case i.IsCancelled():
		return models.Cancelled
	default:
		return models.Pending
	}
}

func (i *Instance[V]) outcome() reschedule.Outcome {
	o := reschedule.Outcome{Disposition: i.disposition()}
	if i.IsFailed() {
		o.Err = i.Failure()
	}
	return o
}
