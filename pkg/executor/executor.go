// Package executor adapts host execution contexts — anything shaped like
// execute(task) — into the observable-future world: submissions return
// future.Future[V] instead of bare results, and a handful of decorators
// (same-thread, intercepting, context-propagating, serializing-by-key)
// compose around any such executor.
//
// This generalizes the teacher's worker pool (pkg/scheduler.Scheduler),
// which hard-wires one dispatch policy (N workers, FIFO work queue) to a
// single Future type. Here "executor" is the narrow reusable contract and
// the dispatch policy is just one adapter (ObservableExecutor) among
// several.
package executor

import (
	"context"

	"github.com/jkilzi/futask/pkg/future"
)

// Executor runs a task. It satisfies future.Executor, so any Executor
// here can be passed directly to Future.AddListener.
type Executor interface {
	Execute(task func())
}

// Host is the minimal contract expected of a pre-existing executor/thread
// pool abstraction (spec.md §1: "The existing executor/thread-pool
// abstraction is assumed available and exposes an execute(task)
// operation."). Any Executor in this package already satisfies Host.
type Host interface {
	Execute(task func())
}

// ObservableExecutor wraps a Host executor so submissions return an
// observable future.Future[V] instead of nothing.
type ObservableExecutor struct {
	host Host
}

// Observable wraps host so Submit returns futures.
func Observable(host Host) *ObservableExecutor {
	return &ObservableExecutor{host: host}
}

// Submit runs producer on the wrapped host and returns a future for its
// outcome. The returned future's Cancel(true) cancels producer's context;
// Cancel(false) only marks the future cancelled without affecting a task
// already running on the host (the host itself offers no preemption).
func (o *ObservableExecutor) Submit(ctx context.Context, producer future.Producer[any]) future.Future[any] {
	rf := future.NewRunnableFuture[any](ctx, producer)
	o.host.Execute(rf.Run)
	return rf
}

// InvokeAll submits every producer and returns one future per producer,
// in the same order.
func (o *ObservableExecutor) InvokeAll(ctx context.Context, producers []future.Producer[any]) []future.Future[any] {
	out := make([]future.Future[any], len(producers))
	for i, p := range producers {
		out[i] = o.Submit(ctx, p)
	}
	return out
}

// Execute implements Executor by fire-and-forget submission on the host,
// with no observable future — the unchanged invokeAny-style passthrough
// spec.md calls out for operations that do not need to become observable.
func (o *ObservableExecutor) Execute(task func()) {
	o.host.Execute(task)
}
