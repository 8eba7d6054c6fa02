package executor

// Interceptor sees a task about to run on delegate and returns the task
// that actually runs in its place — typically delegate's own task wrapped
// with before/after behavior. Interceptors compose outer-first: the last
// Interceptor in the list sees the raw task; each earlier one sees the
// next one's wrapped result, so the first Interceptor runs outermost.
type Interceptor func(delegate Host, inner func()) func()

// wrappingExecutor is the abstract decorator: every Execute call passes
// through wrap before reaching the delegate.
type wrappingExecutor struct {
	delegate Host
	wrap     func(task func()) func()
}

func (w *wrappingExecutor) Execute(task func()) {
	w.delegate.Execute(w.wrap(task))
}

// WithInterceptors returns an executor that runs interceptors[0]'s wrapped
// task, composed outer-first around delegate.
func WithInterceptors(delegate Host, interceptors ...Interceptor) Host {
	return &wrappingExecutor{
		delegate: delegate,
		wrap: func(task func()) func() {
			wrapped := task
			for i := len(interceptors) - 1; i >= 0; i-- {
				ic := interceptors[i]
				inner := wrapped
				wrapped = ic(delegate, inner)
			}
			return wrapped
		},
	}
}
