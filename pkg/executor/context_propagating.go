package executor

// ContextPropagator captures ambient context at a submission site and
// reinstalls it when the task actually runs — e.g. trace spans, request-
// scoped values, MDC-style logging fields. capture/install/restore are
// kept as a trio rather than a single closure: Install hands back a
// restore token, and Restore receives that token once the task is done.
type ContextPropagator interface {
	Capture() (snapshot any)
	Install(snapshot any) (restoreToken any)
	Restore(restoreToken any)
}

// contextPropagatingExecutor installs every propagator's captured
// snapshot before the task runs and restores them, in reverse order, once
// it finishes — regardless of panic, and swallowing any panic a
// propagator's own Restore raises (a broken propagator must not corrupt
// an otherwise-successful task's outcome).
type contextPropagatingExecutor struct {
	delegate    Host
	propagators []ContextPropagator
}

// WithContextPropagators returns an executor that captures every
// propagator's snapshot at submission time (Execute call) and installs it
// around the task when it runs on delegate.
func WithContextPropagators(delegate Host, propagators ...ContextPropagator) Host {
	return &contextPropagatingExecutor{delegate: delegate, propagators: propagators}
}

func (c *contextPropagatingExecutor) Execute(task func()) {
	snapshots := make([]any, len(c.propagators))
	for i, p := range c.propagators {
		snapshots[i] = p.Capture()
	}
	c.delegate.Execute(func() {
		tokens := make([]any, len(c.propagators))
		for i, p := range c.propagators {
			tokens[i] = p.Install(snapshots[i])
		}
		defer func() {
			for i := len(c.propagators) - 1; i >= 0; i-- {
				restoreOne(c.propagators[i], tokens[i])
			}
		}()
		task()
	})
}

func restoreOne(p ContextPropagator, token any) {
	defer func() { recover() }()
	p.Restore(token)
}
