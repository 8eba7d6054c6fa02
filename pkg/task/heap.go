package task

import "github.com/jkilzi/futask/internal/clock"

// queueItem is the engine's type-erased view of an Instance[V] for any V:
// enough to order it in the dispatch heap and to run or discard it,
// without the (necessarily non-generic) Engine ever naming V. Instance[V]
// implements it via scheduledStart/ordinal/seq/tryStart/runAndReport/
// cancelPending.
type queueItem interface {
	scheduledStart() int64
	ordinal() int64
	seq() int64
	tryStart() bool
	runAndReport(clk clock.Clock)
	cancelPending(clk clock.Clock)
}

// priorityQueue is a container/heap.Interface ordered by scheduledStart,
// tie-broken by definition ordinal (submission order) then by instance
// seq (execution order within a definition) — invariant 5's total order.
type priorityQueue []queueItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.scheduledStart() != b.scheduledStart() {
		return a.scheduledStart() < b.scheduledStart()
	}
	if a.ordinal() != b.ordinal() {
		return a.ordinal() < b.ordinal()
	}
	return a.seq() < b.seq()
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(queueItem))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
