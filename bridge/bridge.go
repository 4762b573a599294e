package bridge

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim/hooking"
)

type state int

const (
	stateCreated state = iota
	stateInitialized
	stateFailed
	stateFinalized
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateInitialized:
		return "initialized"
	case stateFailed:
		return "failed"
	case stateFinalized:
		return "finalized"
	case stateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Stats counts the requests that went through a Bridge.
type Stats struct {
	Admitted    uint64
	Rejected    uint64
	Completed   uint64
	Outstanding uint64
}

// Outstanding describes a request that was still in flight when the Bridge
// was finalized. Its completion is never invoked.
type Outstanding struct {
	ID     string
	Addr   int64
	Kind   mem.AccessKind
	Arrive int64
}

// FinalizeReport summarizes a Bridge at finalization.
type FinalizeReport struct {
	Cycle       uint64
	Stats       Stats
	Outstanding []Outstanding
	EngineStats map[string]float64
}

type inflight struct {
	completion Completion
	addr       int64
	kind       mem.AccessKind
	arrive     int64
}

// A Bridge connects a clock driver to a memory timing engine. It owns the
// frontend and the memory system of the engine, admits requests into the
// frontend, and ticks both halves once per cycle.
//
// A Bridge is not safe for concurrent use.
type Bridge struct {
	*hooking.HookableBase

	name   string
	log    logrus.FieldLogger
	engine EngineFactory

	state   state
	ticking bool
	cfg     *config.Config
	fe    Frontend
	ms    MemorySystem
	cycle uint64

	inflight map[string]inflight
	stats    Stats
}

// Name returns the name of the bridge.
func (b *Bridge) Name() string {
	return b.name
}

// Config returns the configuration the bridge was initialized with, or nil
// before initialization.
func (b *Bridge) Config() *config.Config {
	return b.cfg
}

// CurrentCycle returns the number of ticks performed so far.
func (b *Bridge) CurrentCycle() uint64 {
	return b.cycle
}

// Stats returns the request counters of the bridge.
func (b *Bridge) Stats() Stats {
	s := b.stats
	s.Outstanding = uint64(len(b.inflight))

	return s
}

// Frontend returns the frontend owned by the bridge, or nil if the bridge is
// not initialized.
func (b *Bridge) Frontend() Frontend {
	return b.fe
}

// MemorySystem returns the memory system owned by the bridge, or nil if the
// bridge is not initialized.
func (b *Bridge) MemorySystem() MemorySystem {
	return b.ms
}

// Initialize loads the configuration from src, creates both halves of the
// engine, and connects them to each other. Any failure is reported as a
// *ConfigError and leaves the bridge unusable.
func (b *Bridge) Initialize(src config.Source) error {
	if b.state != stateCreated {
		return lifecycleViolation("Initialize", b.state)
	}

	err := b.initialize(src)
	if err != nil {
		b.state = stateFailed
		b.log.WithError(err).Error("initialization failed")

		return &ConfigError{Err: err}
	}

	b.state = stateInitialized
	b.log.WithField("engine", b.cfg.Engine).Debug("initialized")

	return nil
}

func (b *Bridge) initialize(src config.Source) error {
	if src == nil {
		return config.ErrInvalid
	}

	cfg, err := src.Load()
	if err != nil {
		return err
	}

	factory := b.engine
	if factory == nil {
		factory, err = lookupEngine(cfg.Engine)
		if err != nil {
			return err
		}
	}

	fe, ms, err := factory(cfg)
	if err != nil {
		return err
	}

	fe.ConnectMemorySystem(ms)
	ms.ConnectFrontend(fe)

	b.cfg = cfg
	b.fe = fe
	b.ms = ms
	b.inflight = make(map[string]inflight)

	return nil
}

// SendRequest tries to admit a request into the frontend and binds c to it.
// It returns false if the frontend applies backpressure. In that case c is
// disposed right away and is never completed. The returned error is non-nil
// only if the bridge is not ready to take requests or c is nil.
func (b *Bridge) SendRequest(
	addr int64,
	isWrite bool,
	c Completion,
) (bool, error) {
	if b.state != stateInitialized {
		return false, lifecycleViolation("SendRequest", b.state)
	}

	if c == nil {
		return false, boundaryViolation("nil completion")
	}

	req := mem.RequestBuilder{}.
		WithAddress(addr).
		WithKind(mem.KindOf(isWrite)).
		WithOnDepart(b.depart).
		Build()

	if !b.fe.ReceiveExternalRequest(req) {
		b.stats.Rejected++
		b.traceReject(req)
		c.Dispose()

		return false, nil
	}

	b.inflight[req.ID] = inflight{
		completion: c,
		addr:       req.Addr,
		kind:       req.Kind,
		arrive:     req.Arrive,
	}
	b.stats.Admitted++
	b.traceAdmit(req)

	return true, nil
}

// depart is the OnDepart function of all the requests the bridge admits.
func (b *Bridge) depart(req *mem.Request) {
	entry, ok := b.inflight[req.ID]
	if !ok {
		panic(boundaryViolation(
			"request %s completed but is not in flight", req.ID))
	}

	delete(b.inflight, req.ID)
	b.stats.Completed++

	final := *req
	final.OnDepart = nil
	final.Addr = entry.addr
	final.Kind = entry.kind

	b.traceComplete(final)
	entry.completion.Complete(final)
}

// Tick advances the frontend and then the memory system by one cycle. A
// request the frontend forwards during its tick is seen by the memory system
// in the same cycle. Completions run inside Tick and may send requests, but
// calling Tick, Finalize, or Destroy from them is a lifecycle violation.
func (b *Bridge) Tick() error {
	if b.ticking {
		return reentrantCall("Tick")
	}

	if b.state != stateInitialized {
		return lifecycleViolation("Tick", b.state)
	}

	b.ticking = true
	defer func() { b.ticking = false }()

	b.fe.Tick()
	b.ms.Tick()
	b.cycle++

	return nil
}

// TCK returns the clock period of the memory system in nanoseconds.
func (b *Bridge) TCK() (float64, error) {
	if b.state != stateInitialized && b.state != stateFinalized {
		return 0, lifecycleViolation("TCK", b.state)
	}

	return b.ms.TCK(), nil
}

// Finalize flushes the frontend and then the memory system. Requests that
// are still in flight are listed in the report. Their completions are never
// invoked and are disposed when the bridge is destroyed.
func (b *Bridge) Finalize() (FinalizeReport, error) {
	if b.ticking {
		return FinalizeReport{}, reentrantCall("Finalize")
	}

	if b.state != stateInitialized {
		return FinalizeReport{}, lifecycleViolation("Finalize", b.state)
	}

	b.fe.Finalize()
	b.ms.Finalize()
	b.state = stateFinalized

	report := FinalizeReport{
		Cycle:       b.cycle,
		Stats:       b.Stats(),
		Outstanding: b.outstanding(),
		EngineStats: map[string]float64{},
	}

	for _, half := range []any{b.fe, b.ms} {
		if r, ok := half.(StatsReporter); ok {
			for k, v := range r.Stats() {
				report.EngineStats[k] = v
			}
		}
	}

	if len(report.Outstanding) > 0 {
		b.log.WithField("outstanding", len(report.Outstanding)).
			Warn("finalized with requests in flight")
	}

	b.log.WithField("cycle", b.cycle).Debug("finalized")
	b.traceFinalize(report)

	return report, nil
}

func (b *Bridge) outstanding() []Outstanding {
	list := make([]Outstanding, 0, len(b.inflight))
	for id, e := range b.inflight {
		list = append(list, Outstanding{
			ID:     id,
			Addr:   e.addr,
			Kind:   e.kind,
			Arrive: e.arrive,
		})
	}

	sortOutstanding(list)

	return list
}

// Destroy breaks the links between the engine halves and releases the
// memory system and then the frontend. An initialized bridge must be
// finalized first. Destroying a destroyed bridge does nothing.
func (b *Bridge) Destroy() error {
	if b.ticking {
		return reentrantCall("Destroy")
	}

	switch b.state {
	case stateDestroyed:
		return nil
	case stateInitialized:
		return lifecycleViolation("Destroy", b.state)
	}

	if b.fe != nil {
		b.fe.ConnectMemorySystem(nil)
		b.ms.ConnectFrontend(nil)
	}

	for id, e := range b.inflight {
		delete(b.inflight, id)
		e.completion.Dispose()
	}

	if r, ok := b.ms.(Releaser); ok {
		r.Release()
	}

	if r, ok := b.fe.(Releaser); ok {
		r.Release()
	}

	b.fe = nil
	b.ms = nil
	b.state = stateDestroyed
	b.log.Debug("destroyed")

	return nil
}

func sortOutstanding(list []Outstanding) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Arrive != list[j].Arrive {
			return list[i].Arrive < list[j].Arrive
		}

		return list[i].ID < list[j].ID
	})
}
