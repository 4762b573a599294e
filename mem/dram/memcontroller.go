package dram

import (
	"log"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/mem/dram/internal/addressmapping"
	"github.com/sarchlab/membridge/mem/dram/internal/cmdq"
	"github.com/sarchlab/membridge/mem/dram/internal/org"
	"github.com/sarchlab/membridge/mem/dram/internal/signal"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

// TaskKindTransaction is the kind of the tasks that the memory controller
// reports.
const TaskKindTransaction = "dram_trans"

type controllerStats struct {
	reads        uint64
	writes       uint64
	rowHits      uint64
	rowMisses    uint64
	rowConflicts uint64
	totalLatency uint64
}

// MemController is the memory system of the reference engine. Each channel
// has its own transaction queue and serves at most one transaction per
// cycle.
type MemController struct {
	*hooking.HookableBase

	name      string
	fe        bridge.Frontend
	tck       float64
	timing    org.Timing
	mapper    addressmapping.Mapper
	scheduler cmdq.Scheduler
	queues    []sim.Buffer
	channels  []*org.Channel

	inflight  []*signal.Transaction
	cycle     int64
	finalized bool
	stats     controllerStats
}

// Name returns the name of the memory controller.
func (c *MemController) Name() string {
	return c.name
}

// CurrentCycle returns the number of cycles the controller has ticked.
func (c *MemController) CurrentCycle() uint64 {
	return uint64(c.cycle)
}

// Buffers returns the transaction queues, one per channel.
func (c *MemController) Buffers() []sim.Buffer {
	return c.queues
}

// ConnectFrontend sets the frontend that feeds the controller.
func (c *MemController) ConnectFrontend(fe bridge.Frontend) {
	c.fe = fe
}

// TCK returns the DRAM clock period in nanoseconds.
func (c *MemController) TCK() float64 {
	return c.tck
}

// Send queues the request in the queue of the channel it maps to. It returns
// false if that queue is full.
func (c *MemController) Send(req *mem.Request) bool {
	if c.finalized {
		log.Panicf("memory controller %s received a request after finalization",
			c.name)
	}

	loc := c.mapper.Map(uint64(req.Addr))

	queue := c.queues[loc.Channel]
	if !queue.CanPush() {
		return false
	}

	t := &signal.Transaction{
		Req:      req,
		Location: loc,
		Accepted: c.cycle,
	}
	queue.Push(t)
	c.traceTransactionStart(t)

	return true
}

// Tick completes the transactions that are done and then issues new ones.
// A transaction sent in this cycle can be issued in this cycle.
func (c *MemController) Tick() {
	c.respond()
	c.issue()
	c.cycle++
}

func (c *MemController) respond() {
	remaining := c.inflight[:0]

	for _, t := range c.inflight {
		if !t.IsCompleted(c.cycle) {
			remaining = append(remaining, t)
			continue
		}

		c.traceTransactionComplete(t)
		t.Req.Complete(c.cycle)
	}

	for i := len(remaining); i < len(c.inflight); i++ {
		c.inflight[i] = nil
	}

	c.inflight = remaining
}

func (c *MemController) issue() {
	for i, queue := range c.queues {
		pending := make([]*signal.Transaction, queue.Size())
		for j := range pending {
			pending[j] = queue.Get(j).(*signal.Transaction)
		}

		ch := c.channels[i]

		selected := c.scheduler.Select(pending, ch, c.cycle)
		if selected < 0 {
			continue
		}

		t := queue.Remove(selected).(*signal.Transaction)
		c.start(ch, t)
	}
}

func (c *MemController) start(ch *org.Channel, t *signal.Transaction) {
	l := t.Location
	bank := ch.Bank(l.Rank, l.BankGroup, l.Bank)

	latency, state := bank.Access(c.timing, int64(l.Row), t.IsWrite(), c.cycle)
	t.DoneAt = c.cycle + latency
	c.inflight = append(c.inflight, t)

	c.count(t, state)
}

func (c *MemController) count(t *signal.Transaction, state org.RowState) {
	if t.IsWrite() {
		c.stats.writes++
	} else {
		c.stats.reads++
	}

	switch state {
	case org.RowHit:
		c.stats.rowHits++
	case org.RowMiss:
		c.stats.rowMisses++
	case org.RowConflict:
		c.stats.rowConflicts++
	}

	c.stats.totalLatency += uint64(t.DoneAt - t.Req.Arrive)
}

// Finalize stops the controller from taking new requests. Transactions that
// are still queued or in flight stay incomplete.
func (c *MemController) Finalize() {
	c.finalized = true
}

// Stats reports the request counts and the row buffer outcomes.
func (c *MemController) Stats() map[string]float64 {
	issued := c.stats.reads + c.stats.writes

	avg := 0.0
	if issued > 0 {
		avg = float64(c.stats.totalLatency) / float64(issued)
	}

	return map[string]float64{
		"dram.cycles":        float64(c.cycle),
		"dram.reads":         float64(c.stats.reads),
		"dram.writes":        float64(c.stats.writes),
		"dram.row_hits":      float64(c.stats.rowHits),
		"dram.row_misses":    float64(c.stats.rowMisses),
		"dram.row_conflicts": float64(c.stats.rowConflicts),
		"dram.avg_latency":   avg,
	}
}

func (c *MemController) traceTransactionStart(t *signal.Transaction) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskStart,
		Item: hooking.TaskStart{
			ID:       t.Req.ID + "@dram",
			ParentID: t.Req.ID,
			Kind:     TaskKindTransaction,
			What:     t.Req.Kind.String(),
			Where:    c.name,
		},
		Detail: t.Location,
	})
}

func (c *MemController) traceTransactionComplete(t *signal.Transaction) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskEnd,
		Item:   hooking.TaskEnd{ID: t.Req.ID + "@dram"},
	})
}
