package executor

// sameThreadExecutor runs every task synchronously on the calling
// goroutine. Submissions through an ObservableExecutor wrapping it return
// already-complete futures by the time Submit returns.
type sameThreadExecutor struct{}

var sameThreadInstance Host = sameThreadExecutor{}

// SameThread returns the shared same-thread executor.
func SameThread() Host {
	return sameThreadInstance
}

func (sameThreadExecutor) Execute(task func()) {
	task()
}
