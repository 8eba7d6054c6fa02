package future

// Listener receives the future exactly once, after it reaches a terminal
// disposition. Implementations should use Future.Visit or the IsX
// predicates to discriminate the outcome — OnComplete itself carries no
// disposition argument, matching the "single listener type dispatched on
// completion" shape used throughout the pack's scheduler/worker examples.
type Listener[V any] interface {
	OnComplete(f Future[V])
}

// funcListener adapts a plain func into a Listener.
type funcListener[V any] struct {
	fn func(Future[V])
}

// ListenerFunc adapts fn into a Listener[V].
func ListenerFunc[V any](fn func(Future[V])) Listener[V] {
	return &funcListener[V]{fn: fn}
}

func (l *funcListener[V]) OnComplete(f Future[V]) { l.fn(f) }

// visitorListener adapts a Visitor into a Listener that dispatches
// Successful/Failed/Cancelled on completion.
type visitorListener[V any] struct {
	visitor Visitor[V]
}

// ListenerFromVisitor adapts v into a Listener that calls v.Visit-style
// methods when the future completes.
func ListenerFromVisitor[V any](v Visitor[V]) Listener[V] {
	return &visitorListener[V]{visitor: v}
}

func (l *visitorListener[V]) OnComplete(f Future[V]) {
	_ = f.Visit(l.visitor)
}

// runnableListener adapts a zero-arg callback that ignores the future
// entirely — the "simple runnable" helper the spec calls out alongside
// the visitor and consumer adapters.
type runnableListener[V any] struct {
	fn func()
}

// ListenerFromRunnable adapts fn into a Listener that ignores the
// completed future and its outcome.
func ListenerFromRunnable[V any](fn func()) Listener[V] {
	return &runnableListener[V]{fn: fn}
}

func (l *runnableListener[V]) OnComplete(Future[V]) { l.fn() }

// listenerEntry is the ListenerRegistry's element: a callback paired with
// the execution context it must run on. Held only while the owning
// future's disposition is Pending.
type listenerEntry[V any] struct {
	cb  Listener[V]
	ctx Executor
}

// dispatchAll submits every entry to its execution context, passing owner
// as the completed future. A panicking listener is recovered and swallowed
// inside its own dispatch goroutine/callback so it can never propagate
// into the completing thread or clobber sibling listeners.
func dispatchAll[V any](owner Future[V], entries []listenerEntry[V]) {
	for _, e := range entries {
		dispatchOne(owner, e)
	}
}

func dispatchOne[V any](owner Future[V], e listenerEntry[V]) {
	e.ctx.Execute(func() {
		defer recoverListenerPanic()
		e.cb.OnComplete(owner)
	})
}
