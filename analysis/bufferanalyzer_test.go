package analysis

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/sim"
)

type fakeClock struct {
	cycle uint64
}

func (c *fakeClock) CurrentCycle() uint64 {
	return c.cycle
}

var _ = Describe("BufferAnalyzer", func() {
	var (
		clock    *fakeClock
		logger   *MemoryLogger
		buf      sim.Buffer
		analyzer *BufferAnalyzer
	)

	build := func(period uint64) {
		analyzer = MakeBufferAnalyzerBuilder().
			WithPerfLogger(logger).
			WithCycleTeller(clock).
			WithPeriod(period).
			WithBuffer(buf).
			Build()
	}

	BeforeEach(func() {
		clock = &fakeClock{}
		logger = &MemoryLogger{}
		buf = sim.NewBuffer("Buf", 4)
	})

	It("should panic without a buffer", func() {
		Expect(func() {
			MakeBufferAnalyzerBuilder().
				WithPerfLogger(logger).
				WithCycleTeller(clock).
				Build()
		}).To(Panic())
	})

	It("should weight levels by cycles", func() {
		build(0)

		clock.cycle = 10
		buf.Push(1)
		buf.Push(2)

		clock.cycle = 20
		buf.Pop()

		clock.cycle = 40
		analyzer.Summarize()

		entries := logger.Entries()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].StartCycle).To(Equal(uint64(0)))
		Expect(entries[0].EndCycle).To(Equal(uint64(40)))
		Expect(entries[0].Location).To(Equal("Buf"))
		Expect(entries[0].Metric).To(Equal("Level"))
		Expect(entries[0].Value).To(BeNumerically("~", 40.0/40.0))
		Expect(analyzer.MaxLevel()).To(Equal(2))
	})

	It("should split the run into periods", func() {
		build(10)

		clock.cycle = 5
		buf.Push(1)

		clock.cycle = 15
		buf.Pop()

		clock.cycle = 30
		analyzer.Summarize()

		entries := logger.Entries()
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].StartCycle).To(Equal(uint64(0)))
		Expect(entries[0].EndCycle).To(Equal(uint64(10)))
		Expect(entries[0].Value).To(BeNumerically("~", 0.5))
		Expect(entries[1].StartCycle).To(Equal(uint64(10)))
		Expect(entries[1].EndCycle).To(Equal(uint64(20)))
		Expect(entries[1].Value).To(BeNumerically("~", 0.5))
	})

	It("should not log empty periods", func() {
		build(10)

		clock.cycle = 50
		analyzer.Summarize()

		Expect(logger.Entries()).To(BeEmpty())
	})
})

var _ = Describe("Loggers", func() {
	It("should forward entries to all loggers", func() {
		a, b := &MemoryLogger{}, &MemoryLogger{}

		Loggers{a, b}.AddDataEntry(PerfEntry{Metric: "Level"})

		Expect(a.Entries()).To(HaveLen(1))
		Expect(b.Entries()).To(HaveLen(1))
	})
})
