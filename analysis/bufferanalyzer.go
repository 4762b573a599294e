package analysis

import (
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

// BufferAnalyzer measures the average level of a buffer, weighted by the
// number of cycles the buffer stays at each level. It logs one entry per
// period, or one entry for the whole run if no period is set. Periods with
// an average level of zero are not logged.
type BufferAnalyzer struct {
	PerfLogger
	hooking.CycleTeller

	buf    sim.Buffer
	period uint64

	lastCycle uint64
	lastLevel int
	maxLevel  int

	periodStart uint64
	levelSum    uint64
	cycleSum    uint64
}

// Func is a function that records buffer level change.
func (b *BufferAnalyzer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != sim.HookPosBufPush && ctx.Pos != sim.HookPosBufPop {
		return
	}

	b.advance(b.CurrentCycle())

	b.lastLevel = b.buf.Size()
	if b.lastLevel > b.maxLevel {
		b.maxLevel = b.lastLevel
	}
}

// Name returns the name of the buffer being analyzed.
func (b *BufferAnalyzer) Name() string {
	return b.buf.Name()
}

// MaxLevel returns the highest level seen.
func (b *BufferAnalyzer) MaxLevel() int {
	return b.maxLevel
}

// Summarize accounts for the cycles up to now and logs the last, possibly
// partial, period.
func (b *BufferAnalyzer) Summarize() {
	b.advance(b.CurrentCycle())
	b.flush(b.lastCycle)
}

func (b *BufferAnalyzer) advance(now uint64) {
	if now < b.lastCycle {
		return
	}

	if b.period > 0 {
		for end := b.periodStart + b.period; end <= now; end += b.period {
			b.account(end - b.lastCycle)
			b.lastCycle = end
			b.flush(end)
		}
	}

	b.account(now - b.lastCycle)
	b.lastCycle = now
}

func (b *BufferAnalyzer) account(cycles uint64) {
	b.levelSum += uint64(b.lastLevel) * cycles
	b.cycleSum += cycles
}

func (b *BufferAnalyzer) flush(end uint64) {
	start := b.periodStart

	levelSum, cycleSum := b.levelSum, b.cycleSum
	b.levelSum, b.cycleSum = 0, 0
	b.periodStart = end

	if cycleSum == 0 || levelSum == 0 {
		return
	}

	b.AddDataEntry(PerfEntry{
		StartCycle: start,
		EndCycle:   end,
		Location:   b.buf.Name(),
		Metric:     "Level",
		EntryType:  "Buffer",
		Value:      float64(levelSum) / float64(cycleSum),
	})
}

// BufferAnalyzerBuilder can build a BufferAnalyzer.
type BufferAnalyzerBuilder struct {
	perfLogger  PerfLogger
	cycleTeller hooking.CycleTeller
	period      uint64
	buffer      sim.Buffer
}

// MakeBufferAnalyzerBuilder creates a BufferAnalyzerBuilder.
func MakeBufferAnalyzerBuilder() BufferAnalyzerBuilder {
	return BufferAnalyzerBuilder{}
}

// WithPerfLogger sets the PerfLogger to use.
func (b BufferAnalyzerBuilder) WithPerfLogger(
	perfLogger PerfLogger,
) BufferAnalyzerBuilder {
	b.perfLogger = perfLogger
	return b
}

// WithCycleTeller sets the clock to use.
func (b BufferAnalyzerBuilder) WithCycleTeller(
	cycleTeller hooking.CycleTeller,
) BufferAnalyzerBuilder {
	b.cycleTeller = cycleTeller
	return b
}

// WithPeriod sets the number of cycles of a period.
func (b BufferAnalyzerBuilder) WithPeriod(period uint64) BufferAnalyzerBuilder {
	b.period = period
	return b
}

// WithBuffer sets the buffer to use.
func (b BufferAnalyzerBuilder) WithBuffer(
	buffer sim.Buffer,
) BufferAnalyzerBuilder {
	b.buffer = buffer
	return b
}

// Build creates a BufferAnalyzer and registers it as a hook of the buffer.
func (b BufferAnalyzerBuilder) Build() *BufferAnalyzer {
	if b.perfLogger == nil {
		panic("perfLogger is not set")
	}

	if b.cycleTeller == nil {
		panic("cycleTeller is not set")
	}

	if b.buffer == nil {
		panic("buffer is not set")
	}

	now := b.cycleTeller.CurrentCycle()

	analyzer := &BufferAnalyzer{
		PerfLogger:  b.perfLogger,
		CycleTeller: b.cycleTeller,
		buf:         b.buffer,
		period:      b.period,
		lastCycle:   now,
		lastLevel:   b.buffer.Size(),
		maxLevel:    b.buffer.Size(),
		periodStart: now,
	}

	b.buffer.AcceptHook(analyzer)

	return analyzer
}
