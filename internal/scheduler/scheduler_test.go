package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/scheduler"
	"github.com/dandantas/pulse/internal/service"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) error
}

func (r *fakeRunner) Run(ctx context.Context, kind model.DataKind, keys []string) (service.RunResult, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()

	var err error
	if r.fn != nil {
		err = r.fn(ctx, call)
	}
	return service.RunResult{Kind: kind, RecordsProcessed: len(keys)}, err
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var _ = Describe("Scheduler", func() {
	var (
		runner *fakeRunner
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		runner = &fakeRunner{}
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	newScheduler := func(keys []string, interval time.Duration) *scheduler.Scheduler {
		schedule, err := scheduler.ParseSchedule("", interval)
		Expect(err).NotTo(HaveOccurred())
		return scheduler.NewScheduler(model.KindStock, keys, schedule, runner)
	}

	Context("starting", func() {
		It("runs immediately when keys are configured", func() {
			s := newScheduler([]string{"AAPL"}, time.Hour)
			Expect(s.Start(ctx)).To(Succeed())
			Expect(s.State()).To(Equal(scheduler.StateRunning))

			Eventually(runner.Calls).Should(Equal(1))
			Consistently(runner.Calls, 50*time.Millisecond).Should(Equal(1))
		})

		It("waits for the first tick when no keys are configured", func() {
			s := newScheduler(nil, time.Hour)
			Expect(s.Start(ctx)).To(Succeed())

			Consistently(runner.Calls, 50*time.Millisecond).Should(Equal(0))
		})

		It("refuses to start twice", func() {
			s := newScheduler([]string{"AAPL"}, time.Hour)
			Expect(s.Start(ctx)).To(Succeed())
			Expect(s.Start(ctx)).To(MatchError(scheduler.ErrAlreadyStarted))
		})
	})

	Context("ticking", func() {
		It("runs again on every tick", func() {
			s := newScheduler([]string{"AAPL"}, 10*time.Millisecond)
			Expect(s.Start(ctx)).To(Succeed())

			Eventually(runner.Calls).Should(BeNumerically(">=", 3))
		})

		It("keeps running after a failed cycle", func() {
			runner.fn = func(ctx context.Context, call int) error {
				if call == 1 {
					return errors.New("provider down")
				}
				return nil
			}
			s := newScheduler([]string{"AAA", "BBB"}, 10*time.Millisecond)
			Expect(s.Start(ctx)).To(Succeed())

			Eventually(runner.Calls).Should(BeNumerically(">=", 2))
			Expect(s.State()).To(Equal(scheduler.StateRunning))
		})
	})

	Context("stopping", func() {
		It("interrupts an in-flight fetch", func() {
			inFlight := make(chan struct{})
			var once sync.Once
			runner.fn = func(ctx context.Context, call int) error {
				once.Do(func() { close(inFlight) })
				<-ctx.Done()
				return ctx.Err()
			}
			s := newScheduler([]string{"AAPL"}, time.Hour)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(inFlight).Should(BeClosed())

			stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
			defer stopCancel()
			s.Stop(stopCtx)

			Expect(s.State()).To(Equal(scheduler.StateStopped))
		})

		It("stops when the parent context is cancelled", func() {
			s := newScheduler([]string{"AAPL"}, 10*time.Millisecond)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(runner.Calls).Should(BeNumerically(">=", 1))

			cancel()

			Eventually(s.State).Should(Equal(scheduler.StateStopped))
			calls := runner.Calls()
			Consistently(runner.Calls, 50*time.Millisecond).Should(Equal(calls))
		})
	})

	Context("schedules", func() {
		It("accepts cron expressions and descriptors", func() {
			_, err := scheduler.ParseSchedule("*/5 * * * *", 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = scheduler.ParseSchedule("@every 30s", 0)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects invalid input", func() {
			_, err := scheduler.ParseSchedule("not a cron", 0)
			Expect(err).To(HaveOccurred())
			_, err = scheduler.ParseSchedule("", 0)
			Expect(err).To(HaveOccurred())
		})

		It("spaces fixed-delay ticks by the interval", func() {
			schedule, err := scheduler.ParseSchedule("", 90*time.Second)
			Expect(err).NotTo(HaveOccurred())
			t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(schedule.Next(t0)).To(Equal(t0.Add(90 * time.Second)))
		})
	})
})
