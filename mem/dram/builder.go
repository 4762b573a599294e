package dram

import (
	"fmt"

	"github.com/sarchlab/membridge/mem/dram/internal/addressmapping"
	"github.com/sarchlab/membridge/mem/dram/internal/cmdq"
	"github.com/sarchlab/membridge/mem/dram/internal/org"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

// System is a frontend and a memory controller built together. The two are
// not connected to each other until a bridge initializes them.
type System struct {
	Frontend   *Frontend
	Controller *MemController
}

// Builder can build reference engines.
type Builder struct {
	hooks []hooking.Hook

	frontendQueueSize    int
	transactionQueueSize int
	scheduler            string
	addrMapping          string

	busWidth     int
	burstLength  int
	numChannel   int
	numRank      int
	numBankGroup int
	numBank      int
	numRow       int
	numCol       int

	tCK  float64
	tCL  int
	tRCD int
	tRP  int
	tBL  int
	tWR  int
}

// MakeBuilder creates a builder with a single channel DDR4-2400 device.
func MakeBuilder() Builder {
	return Builder{
		frontendQueueSize:    32,
		transactionQueueSize: 32,
		scheduler:            "FRFCFS",
		addrMapping:          "RoBaRaCoCh",
		busWidth:             64,
		burstLength:          8,
		numChannel:           1,
		numRank:              1,
		numBankGroup:         4,
		numBank:              4,
		numRow:               1 << 16,
		numCol:               1 << 10,
		tCK:                  0.833,
		tCL:                  16,
		tRCD:                 16,
		tRP:                  16,
		tBL:                  4,
		tWR:                  18,
	}
}

// WithFrontendQueueSize sets the number of requests the frontend can hold
// before it rejects new ones.
func (b Builder) WithFrontendQueueSize(n int) Builder {
	b.frontendQueueSize = n
	return b
}

// WithTransactionQueueSize sets the number of transactions that each channel
// can buffer before the frontend has to hold requests back.
func (b Builder) WithTransactionQueueSize(n int) Builder {
	b.transactionQueueSize = n
	return b
}

// WithScheduler sets the scheduler by name, either FRFCFS or FCFS.
func (b Builder) WithScheduler(name string) Builder {
	b.scheduler = name
	return b
}

// WithAddrMapping sets the address mapping by name, either RoBaRaCoCh or
// ChRaBaRoCo.
func (b Builder) WithAddrMapping(name string) Builder {
	b.addrMapping = name
	return b
}

// WithBusWidth sets the number of bits can be transferred out of the banks
// at the same time.
func (b Builder) WithBusWidth(n int) Builder {
	b.busWidth = n
	return b
}

// WithBurstLength sets the number of access (each access manipulates the amount
// of data that equals the bus width) that takes place as one group.
func (b Builder) WithBurstLength(n int) Builder {
	b.burstLength = n
	return b
}

// WithNumChannel sets the channels that the memory controller controls.
func (b Builder) WithNumChannel(n int) Builder {
	b.numChannel = n
	return b
}

// WithNumRank sets the number of ranks in each channel.
func (b Builder) WithNumRank(n int) Builder {
	b.numRank = n
	return b
}

// WithNumBankGroup sets the number of bank groups in each rank.
func (b Builder) WithNumBankGroup(n int) Builder {
	b.numBankGroup = n
	return b
}

// WithNumBank sets the number of banks in each bank group.
func (b Builder) WithNumBank(n int) Builder {
	b.numBank = n
	return b
}

// WithNumRow sets the number of rows in each DRAM array.
func (b Builder) WithNumRow(n int) Builder {
	b.numRow = n
	return b
}

// WithNumCol sets the number of columns in each DRAM array.
func (b Builder) WithNumCol(n int) Builder {
	b.numCol = n
	return b
}

// WithTCK sets the DRAM clock period in nanoseconds.
func (b Builder) WithTCK(ns float64) Builder {
	b.tCK = ns
	return b
}

// WithTCL sets the column access strobe latency in cycles
func (b Builder) WithTCL(cycle int) Builder {
	b.tCL = cycle
	return b
}

// WithTRCD sets the row-to-column delay in cycles.
func (b Builder) WithTRCD(cycle int) Builder {
	b.tRCD = cycle
	return b
}

// WithTRP sets the row precharge latency in cycles.
func (b Builder) WithTRP(cycle int) Builder {
	b.tRP = cycle
	return b
}

// WithTBL sets the number of cycles a burst occupies the data bus.
func (b Builder) WithTBL(cycle int) Builder {
	b.tBL = cycle
	return b
}

// WithTWR sets the write recovery time in cycles.
func (b Builder) WithTWR(cycle int) Builder {
	b.tWR = cycle
	return b
}

// WithAdditionalHooks adds the given hook to the frontend, the memory
// controller, and all the queues.
func (b Builder) WithAdditionalHooks(h hooking.Hook) Builder {
	b.hooks = append(b.hooks, h)
	return b
}

// Build builds a new frontend and memory controller. It returns an error if
// the scheduler or the address mapping is unknown.
func (b Builder) Build(name string) (*System, error) {
	sim.NameMustBeValid(name)

	scheduler, err := cmdq.ByName(b.scheduler)
	if err != nil {
		return nil, err
	}

	order, err := addressmapping.OrderByName(b.addrMapping)
	if err != nil {
		return nil, err
	}

	if b.frontendQueueSize <= 0 || b.transactionQueueSize <= 0 {
		return nil, fmt.Errorf("%s: queue sizes must be positive", name)
	}

	fe := b.buildFrontend(sim.BuildName(name, "Frontend"))
	ctrl := b.buildController(sim.BuildName(name, "MemCtrl"), scheduler, order)

	return &System{Frontend: fe, Controller: ctrl}, nil
}

func (b Builder) buildFrontend(name string) *Frontend {
	fe := &Frontend{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		queue: sim.NewBuffer(
			sim.BuildName(name, "AdmissionQueue"), b.frontendQueueSize),
	}

	b.attachHooks(fe)
	b.attachHooks(fe.queue)

	return fe
}

func (b Builder) buildController(
	name string,
	scheduler cmdq.Scheduler,
	order addressmapping.Order,
) *MemController {
	c := &MemController{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		tck:          b.tCK,
		timing: org.Timing{
			CL:  b.tCL,
			RCD: b.tRCD,
			RP:  b.tRP,
			BL:  b.tBL,
			WR:  b.tWR,
		},
		scheduler: scheduler,
	}

	c.mapper = addressmapping.MakeBuilder().
		WithOrder(order).
		WithBurstLength(b.burstLength).
		WithBusWidth(b.busWidth).
		WithNumChannel(b.numChannel).
		WithNumRank(b.numRank).
		WithNumBankGroup(b.numBankGroup).
		WithNumBank(b.numBank).
		WithNumCol(b.numCol).
		WithNumRow(b.numRow).
		Build()

	for i := 0; i < b.numChannel; i++ {
		queue := sim.NewBuffer(
			sim.BuildNameWithIndex(name, "TransQueue", i),
			b.transactionQueueSize)
		b.attachHooks(queue)

		c.queues = append(c.queues, queue)
		c.channels = append(c.channels,
			org.NewChannel(b.numRank, b.numBankGroup, b.numBank))
	}

	b.attachHooks(c)

	return c
}

func (b Builder) attachHooks(hookable hooking.Hookable) {
	for _, hook := range b.hooks {
		hookable.AcceptHook(hook)
	}
}
