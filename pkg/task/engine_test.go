package task_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jkilzi/futask/internal/clock"
	"github.com/jkilzi/futask/internal/models"
	"github.com/jkilzi/futask/pkg/reschedule"
	"github.com/jkilzi/futask/pkg/task"
)

func TestTask(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "task suite")
}

var _ = Describe("Engine", func() {
	var (
		engine *task.Engine
		fake   *clock.Fake
	)

	BeforeEach(func() {
		fake = clock.NewFake(0)
		engine = task.NewEngine(task.WithClock(fake), task.WithWorkerCount(4))
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})

	It("runs a one-shot definition exactly once", func() {
		var runs atomic.Int32
		producer := func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 7, nil
		}
		def, err := task.NewDefinition[int](producer)
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int64 { return h.ExecutionCount() }, time.Second).Should(Equal(int64(1)))
		Expect(runs.Load()).To(Equal(int32(1)))
		Expect(h.Definition().Status()).To(Equal(models.Finished))
		Expect(h.Current()).To(BeNil())
		Expect(h.History()).To(HaveLen(1))
	})

	It("reschedules a fixed-rate recurring definition and accumulates history (S6)", func() {
		policy, err := reschedule.FixedRate(10 * time.Millisecond)
		Expect(err).NotTo(HaveOccurred())

		producer := func(ctx context.Context) (int, error) { return 1, nil }
		def, err := task.NewDefinition[int](producer,
			task.WithRescheduler[int](policy),
			task.WithHistorySize[int](3),
		)
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 5; i++ {
			Eventually(func() int64 { return h.ExecutionCount() }, time.Second).Should(BeNumerically(">=", int64(i+1)))
			fake.Advance(int64(10 * time.Millisecond))
		}

		Expect(len(h.History())).To(BeNumerically("<=", 3))
		Expect(h.Definition().Status()).To(Equal(models.Active))
	})

	It("pauses and resumes a recurring definition (S5)", func() {
		policy, err := reschedule.FixedRate(10 * time.Millisecond)
		Expect(err).NotTo(HaveOccurred())

		producer := func(ctx context.Context) (int, error) { return 1, nil }
		def, err := task.NewDefinition[int](producer, task.WithRescheduler[int](policy))
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			Eventually(func() int64 { return h.ExecutionCount() }, time.Second).Should(BeNumerically(">=", int64(i+1)))
			fake.Advance(int64(10 * time.Millisecond))
		}

		Expect(h.Pause()).To(BeTrue())
		Eventually(func() models.Status { return h.Definition().Status() }).Should(Equal(models.Paused))
		Eventually(func() *task.Instance[int] { return h.Current() }).Should(BeNil())

		execCountAtPause := h.ExecutionCount()

		fake.Advance(int64(50 * time.Millisecond))
		Consistently(func() int64 { return h.ExecutionCount() }, 100*time.Millisecond, 10*time.Millisecond).
			Should(Equal(execCountAtPause))

		Expect(h.Resume()).To(BeTrue())
		Eventually(func() int64 { return h.ExecutionCount() }, time.Second).Should(BeNumerically(">", execCountAtPause))
	})

	It("aborts on first failure under AbortOnException", func() {
		producer := func(ctx context.Context) (int, error) { return 0, context.DeadlineExceeded }
		policy, err := reschedule.FixedRate(10 * time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		def, err := task.NewDefinition[int](producer,
			task.WithRescheduler[int](policy),
			task.WithExceptionPolicy[int](task.AbortOnException[int]()),
		)
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() models.Status { return h.Definition().Status() }, time.Second).Should(Equal(models.Finished))
		Expect(h.ExecutionCount()).To(Equal(int64(1)))
	})

	It("continues past failures under ContinueOnException", func() {
		var calls atomic.Int32
		producer := func(ctx context.Context) (int, error) {
			if calls.Add(1) <= 2 {
				return 0, context.DeadlineExceeded
			}
			return 1, nil
		}
		policy, err := reschedule.FixedRate(10 * time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		def, err := task.NewDefinition[int](producer,
			task.WithRescheduler[int](policy),
			task.WithExceptionPolicy[int](task.ContinueOnException[int]()),
		)
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			Eventually(func() int64 { return h.ExecutionCount() }, time.Second).Should(BeNumerically(">=", int64(i+1)))
			fake.Advance(int64(10 * time.Millisecond))
		}
		Expect(h.FailureCount()).To(Equal(int64(2)))
		Expect(h.SuccessCount()).To(Equal(int64(1)))
	})

	It("cancels a running instance and finishes the definition", func() {
		started := make(chan struct{})
		release := make(chan struct{})
		producer := func(ctx context.Context) (int, error) {
			close(started)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-release:
				return 1, nil
			}
		}
		def, err := task.NewDefinition[int](producer)
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		Eventually(started, time.Second).Should(BeClosed())
		Expect(h.Cancel(true)).To(BeTrue())

		Eventually(func() models.Status { return h.Definition().Status() }, time.Second).Should(Equal(models.Finished))
		Expect(h.CancelledCount()).To(Equal(int64(1)))
		close(release)
	})

	It("does not run a pending instance discarded by Cancel before it starts", func() {
		policy, err := reschedule.FixedRate(time.Hour)
		Expect(err).NotTo(HaveOccurred())
		var runs atomic.Int32
		producer := func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 1, nil
		}
		def, err := task.NewDefinition[int](producer,
			task.WithInitialDelay[int](time.Hour),
			task.WithRescheduler[int](policy),
		)
		Expect(err).NotTo(HaveOccurred())

		h, err := task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Cancel(false)).To(BeTrue())
		fake.Advance(int64(2 * time.Hour))

		Consistently(func() int32 { return runs.Load() }, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(int32(0)))
		Expect(h.Definition().Status()).To(Equal(models.Finished))
	})

	It("does not leak goroutines across many short-lived definitions", func() {
		before := currentGoroutines()

		for i := 0; i < 20; i++ {
			producer := func(ctx context.Context) (int, error) { return i, nil }
			def, err := task.NewDefinition[int](producer)
			Expect(err).NotTo(HaveOccurred())
			h, err := task.Submit(engine, def)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int64 { return h.ExecutionCount() }, time.Second).Should(Equal(int64(1)))
		}

		Eventually(currentGoroutines, time.Second).Should(BeNumerically("<=", before+5))
	})

	It("rejects submissions after Shutdown", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(engine.Shutdown(ctx)).To(Succeed())

		producer := func(ctx context.Context) (int, error) { return 1, nil }
		def, err := task.NewDefinition[int](producer)
		Expect(err).NotTo(HaveOccurred())

		_, err = task.Submit(engine, def)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("DefinitionListener", func() {
	It("notifies listeners once per completed instance", func() {
		fake := clock.NewFake(0)
		engine := task.NewEngine(task.WithClock(fake))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = engine.Shutdown(ctx)
		}()

		var observed atomic.Int32
		listener := task.DefinitionListenerFunc[int](func(inst *task.Instance[int]) {
			observed.Add(1)
		})

		producer := func(ctx context.Context) (int, error) { return 9, nil }
		def, err := task.NewDefinition[int](producer, task.WithListeners[int](listener))
		Expect(err).NotTo(HaveOccurred())

		_, err = task.Submit(engine, def)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int32 { return observed.Load() }, time.Second).Should(Equal(int32(1)))
	})
})

func currentGoroutines() int {
	return runtime.NumGoroutine()
}
