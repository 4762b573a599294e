package driver_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/driver"
	_ "github.com/sarchlab/membridge/mem/dram"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
	"github.com/sarchlab/membridge/workload"
)

type countingLocker struct {
	locked, unlocked int
}

func (l *countingLocker) Lock()   { l.locked++ }
func (l *countingLocker) Unlock() { l.unlocked++ }

func newBridge(name string, queueSize int) *bridge.Bridge {
	b := bridge.New(name)
	Expect(b.Initialize(config.Value{
		Frontend: config.FrontendConfig{QueueSize: queueSize},
	})).To(Succeed())

	return b
}

var _ = Describe("Driver", func() {
	var (
		b      *bridge.Bridge
		logger *logrus.Logger
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		b = newBridge("Bridge", 4)
	})

	AfterEach(func() {
		_, _ = b.Finalize()
		_ = b.Destroy()
	})

	It("should run a workload to completion and stop when idle", func() {
		d := driver.MakeBuilder().
			WithLogger(logger).
			WithIdleThreshold(10).
			Build("Driver")
		p, err := d.Attach(b, workload.NewAlternating(16))
		Expect(err).ToNot(HaveOccurred())

		s, err := d.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Reason).To(Equal(driver.StopIdle))
		Expect(s.Ports).To(HaveLen(1))
		Expect(s.Ports[0].Name).To(Equal("Driver.Port[0]"))
		Expect(s.Ports[0].Issued).To(Equal(uint64(16)))
		Expect(s.Ports[0].Completed).To(Equal(uint64(16)))
		Expect(s.Ports[0].Reads).To(Equal(uint64(8)))
		Expect(s.Ports[0].Writes).To(Equal(uint64(8)))
		Expect(s.Ports[0].AverageLatency()).To(BeNumerically(">", 0))
		Expect(p.InFlight()).To(Equal(0))
		Expect(p.Idle()).To(BeTrue())
		Expect(b.Stats().Outstanding).To(BeZero())
	})

	It("should not stop while a sparse workload has accesses left", func() {
		gen := workload.NewAlternating(3)
		gen.Interval = 50

		d := driver.MakeBuilder().
			WithLogger(logger).
			WithIdleThreshold(10).
			Build("Driver")
		_, err := d.Attach(b, gen)
		Expect(err).ToNot(HaveOccurred())

		s, err := d.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Reason).To(Equal(driver.StopIdle))
		Expect(s.Ports[0].Issued).To(Equal(uint64(3)))
		Expect(s.Ports[0].Completed).To(Equal(uint64(3)))
		Expect(s.Cycles).To(BeNumerically(">", uint64(100)))
	})

	It("should only show the responses of the current cycle", func() {
		d := driver.MakeBuilder().WithLogger(logger).Build("Driver")
		p, err := d.Attach(b, workload.NewAlternating(8))
		Expect(err).ToNot(HaveOccurred())

		seen := 0
		for i := 0; i < 300; i++ {
			Expect(d.Step()).To(Succeed())

			for _, r := range p.Responses() {
				Expect(r.Cycle).To(Equal(d.CurrentCycle() - 1))
				Expect(r.Cycle).To(BeNumerically(">", r.Issued))
				Expect(r.Depart).To(BeNumerically(">=", r.Arrive))
				seen++
			}
		}

		Expect(seen).To(Equal(8))
	})

	It("should call the response callback of a port", func() {
		d := driver.MakeBuilder().WithLogger(logger).Build("Driver")
		p, err := d.Attach(b, workload.NewTrace([]workload.TimedAccess{
			{Cycle: 2, Access: workload.Access{Addr: 0x40}},
			{Cycle: 5, Access: workload.Access{Addr: 0x80, IsWrite: true}},
		}))
		Expect(err).ToNot(HaveOccurred())

		var got []driver.Response
		p.OnResponse = func(_ *driver.Port, r driver.Response) {
			got = append(got, r)
		}

		_, err = d.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].Addr).To(Equal(int64(0x40)))
		Expect(got[0].Issued).To(Equal(uint64(2)))
		Expect(got[1].Addr).To(Equal(int64(0x80)))
		Expect(got[1].IsWrite).To(BeTrue())
		Expect(got[1].Issued).To(Equal(uint64(5)))
	})

	It("should stop at the maximum number of cycles", func() {
		d := driver.MakeBuilder().
			WithLogger(logger).
			WithMaxCycles(500).
			Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(0))
		Expect(err).ToNot(HaveOccurred())

		s, err := d.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Reason).To(Equal(driver.StopMaxCycles))
		Expect(s.Cycles).To(Equal(uint64(500)))
		Expect(b.CurrentCycle()).To(Equal(uint64(500)))
	})

	It("should stop when the context is canceled", func() {
		d := driver.MakeBuilder().WithLogger(logger).Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(0))
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s, err := d.Run(ctx)

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Reason).To(Equal(driver.StopCanceled))
		Expect(s.Cycles).To(Equal(uint64(0)))
	})

	It("should tick a shared bridge once per cycle", func() {
		d := driver.MakeBuilder().
			WithLogger(logger).
			WithIdleThreshold(0).
			WithMaxCycles(50).
			Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(4))
		Expect(err).ToNot(HaveOccurred())
		_, err = d.Attach(b, workload.NewAlternating(4))
		Expect(err).ToNot(HaveOccurred())

		_, err = d.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(d.Ports()).To(HaveLen(2))
		Expect(b.CurrentCycle()).To(Equal(uint64(50)))
	})

	It("should tick several bridges in the order they were attached", func() {
		other := newBridge("Other", 4)
		defer func() {
			_, _ = other.Finalize()
			_ = other.Destroy()
		}()

		d := driver.MakeBuilder().WithLogger(logger).Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(1))
		Expect(err).ToNot(HaveOccurred())
		_, err = d.Attach(other, workload.NewAlternating(1))
		Expect(err).ToNot(HaveOccurred())

		Expect(d.Step()).To(Succeed())

		Expect(b.CurrentCycle()).To(Equal(uint64(1)))
		Expect(other.CurrentCycle()).To(Equal(uint64(1)))
		Expect(b.Stats().Admitted).To(Equal(uint64(1)))
		Expect(other.Stats().Admitted).To(Equal(uint64(1)))
	})

	It("should tick a faster memory clock more often", func() {
		d := driver.MakeBuilder().
			WithLogger(logger).
			WithFreq(1 * sim.GHz).
			WithMaxCycles(100).
			WithIdleThreshold(0).
			Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(0))
		Expect(err).ToNot(HaveOccurred())

		_, err = d.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(b.CurrentCycle()).To(Equal(uint64(120)))
	})

	It("should refuse a nil bridge", func() {
		d := driver.MakeBuilder().WithLogger(logger).Build("Driver")

		_, err := d.Attach(nil, workload.NewAlternating(1))

		Expect(err).To(HaveOccurred())
	})

	It("should refuse a bridge without a clock", func() {
		d := driver.MakeBuilder().
			WithLogger(logger).
			WithFreq(1 * sim.GHz).
			Build("Driver")

		_, err := d.Attach(bridge.New("Fresh"), workload.NewAlternating(1))

		Expect(err).To(MatchError(bridge.ErrLifecycleViolation))
	})

	It("should report a finalized bridge", func() {
		d := driver.MakeBuilder().WithLogger(logger).Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(1))
		Expect(err).ToNot(HaveOccurred())

		_, err = b.Finalize()
		Expect(err).ToNot(HaveOccurred())

		Expect(d.Step()).To(MatchError(bridge.ErrLifecycleViolation))
	})

	It("should hold the locker and invoke hooks in every cycle", func() {
		l := &countingLocker{}
		var cycles []uint64

		d := driver.MakeBuilder().
			WithLogger(logger).
			WithLocker(l).
			WithHooks(hooking.HookFunc(func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(driver.HookPosStep))
				Expect(l.locked).To(Equal(l.unlocked + 1))
				cycles = append(cycles, ctx.Item.(uint64))
			})).
			Build("Driver")
		_, err := d.Attach(b, workload.NewAlternating(1))
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 3; i++ {
			Expect(d.Step()).To(Succeed())
		}

		Expect(l.locked).To(Equal(3))
		Expect(l.unlocked).To(Equal(3))
		Expect(cycles).To(Equal([]uint64{1, 2, 3}))
	})
})
