package future_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jkilzi/futask/pkg/future"
)

var _ = Describe("RunnableFuture", func() {
	It("runs the producer at most once", func() {
		calls := 0
		rf := future.NewRunnableFuture[int](context.Background(), func(ctx context.Context) (int, error) {
			calls++
			return 7, nil
		})

		rf.Run()
		rf.Run()

		v, err := rf.Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(7))
		Expect(calls).To(Equal(1))
	})

	It("surfaces a panicking producer as a Failure", func() {
		rf := future.NewRunnableFuture[int](context.Background(), func(ctx context.Context) (int, error) {
			panic("boom")
		})
		rf.Run()
		Expect(rf.IsFailed()).To(BeTrue())
	})

	It("routes cancel(true) through the interrupt hook into the producer's context", func() {
		started := make(chan struct{})
		observedCancel := make(chan error, 1)
		rf := future.NewRunnableFuture[int](context.Background(), func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			observedCancel <- ctx.Err()
			return 0, ctx.Err()
		})

		go rf.Run()
		Eventually(started).Should(BeClosed())
		Expect(rf.Cancel(true)).To(BeTrue())

		Eventually(observedCancel, time.Second).Should(Receive(MatchError(context.Canceled)))
		Expect(rf.IsCancelled()).To(BeTrue())
	})

	It("ignores the producer's own completion once cancelled first", func() {
		rf := future.NewRunnableFuture[int](context.Background(), func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 99, nil
		})
		go rf.Run()
		// Give Run a moment to enter the producer before cancelling.
		time.Sleep(20 * time.Millisecond)
		rf.Cancel(true)

		Eventually(rf.IsDone, time.Second).Should(BeTrue())
		Expect(rf.IsCancelled()).To(BeTrue())
		_, err := rf.Result()
		Expect(err).To(HaveOccurred())
	})
})
