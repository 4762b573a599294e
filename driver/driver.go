// Package driver advances bridges cycle by cycle and feeds them with the
// accesses of workload generators.
package driver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
	"github.com/sarchlab/membridge/workload"
)

// HookPosStep is invoked at the end of every cycle with the number of
// cycles run so far as the item.
var HookPosStep = &hooking.HookPos{Name: "DriverStep"}

// A Locker is held by the driver while it runs a cycle. Monitors use it to
// inspect bridges between cycles.
type Locker interface {
	Lock()
	Unlock()
}

// StopReason tells why Run returned.
type StopReason int

// A list of all stop reasons.
const (
	StopMaxCycles StopReason = iota
	StopIdle
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopMaxCycles:
		return "max cycles"
	case StopIdle:
		return "idle"
	default:
		return "canceled"
	}
}

// Summary describes a finished run.
type Summary struct {
	Cycles uint64
	Reason StopReason
	Ports  []PortStats
}

type clocked struct {
	bridge *bridge.Bridge
	freq   sim.Freq
	ticks  uint64
}

// Driver is the clock of a simulation. In every cycle it clears the
// response latches of all ports, lets every port issue, and then ticks every
// bridge in the order the bridges were first attached. Completions reach the
// ports during the ticks.
//
// A Driver is not safe for concurrent use.
type Driver struct {
	*hooking.HookableBase

	name          string
	log           logrus.FieldLogger
	freq          sim.Freq
	maxCycles     uint64
	idleThreshold uint64
	locker        Locker

	ports   []*Port
	bridges []*clocked

	cycle uint64
	idle  uint64
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// CurrentCycle returns the number of cycles run so far.
func (d *Driver) CurrentCycle() uint64 {
	return d.cycle
}

// Ports returns the attached ports.
func (d *Driver) Ports() []*Port {
	return d.ports
}

// Attach creates a port that issues the accesses of gen into b. The bridge
// must be initialized.
func (d *Driver) Attach(b *bridge.Bridge, gen workload.Generator) (*Port, error) {
	c, err := d.clockOf(b)
	if err != nil {
		return nil, err
	}

	if c == nil {
		c, err = d.newClocked(b)
		if err != nil {
			return nil, err
		}

		d.bridges = append(d.bridges, c)
	}

	p := &Port{
		id:     len(d.ports),
		driver: d,
		bridge: b,
		gen:    gen,
		stamps: make(map[uint64]uint64),
	}
	p.name = sim.BuildNameWithIndex(d.name, "Port", p.id)
	p.stats.Name = p.name
	d.ports = append(d.ports, p)

	return p, nil
}

func (d *Driver) clockOf(b *bridge.Bridge) (*clocked, error) {
	if b == nil {
		return nil, fmt.Errorf("driver %s: nil bridge", d.name)
	}

	for _, c := range d.bridges {
		if c.bridge == b {
			return c, nil
		}
	}

	return nil, nil
}

func (d *Driver) newClocked(b *bridge.Bridge) (*clocked, error) {
	c := &clocked{bridge: b}

	if d.freq == 0 {
		return c, nil
	}

	tck, err := b.TCK()
	if err != nil {
		return nil, err
	}

	c.freq = sim.FreqFromPeriodNS(tck)
	d.log.WithFields(logrus.Fields{
		"bridge": b.Name(),
		"tck":    tck,
	}).Debug("clock domain crossing")

	return c, nil
}

// ticksDue returns how many times the bridge must tick in the current
// driver cycle to keep up with the driver clock.
func (d *Driver) ticksDue(c *clocked) uint64 {
	if c.freq == 0 {
		return 1
	}

	return c.freq.CyclesIn(d.freq, d.cycle+1) - c.ticks
}

// Step runs one cycle.
func (d *Driver) Step() error {
	if d.locker != nil {
		d.locker.Lock()
		defer d.locker.Unlock()
	}

	if err := d.step(); err != nil {
		return err
	}

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosStep,
			Item:   d.cycle,
		})
	}

	return nil
}

func (d *Driver) step() error {
	for _, p := range d.ports {
		p.resetLatch()
	}

	busy := false

	for _, p := range d.ports {
		admitted, err := p.issue(d.cycle)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}

		busy = busy || admitted
	}

	for _, c := range d.bridges {
		for n := d.ticksDue(c); n > 0; n-- {
			if err := c.bridge.Tick(); err != nil {
				return fmt.Errorf("%s: %w", c.bridge.Name(), err)
			}

			c.ticks++
		}
	}

	for _, p := range d.ports {
		busy = busy || len(p.responses) > 0 || !p.Idle()
	}

	if busy {
		d.idle = 0
	} else {
		d.idle++
	}

	d.cycle++

	return nil
}

// Run steps until the maximum number of cycles is reached, until nothing
// has happened for the idle threshold, or until ctx is canceled.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	reason := StopMaxCycles

	for d.maxCycles == 0 || d.cycle < d.maxCycles {
		if d.cycle%1024 == 0 && ctx.Err() != nil {
			reason = StopCanceled
			break
		}

		if err := d.Step(); err != nil {
			return d.summary(reason), err
		}

		if d.idleThreshold > 0 && d.idle >= d.idleThreshold {
			reason = StopIdle
			break
		}
	}

	d.log.WithFields(logrus.Fields{
		"cycles": d.cycle,
		"reason": reason,
	}).Info("run finished")

	return d.summary(reason), nil
}

func (d *Driver) summary(reason StopReason) Summary {
	s := Summary{Cycles: d.cycle, Reason: reason}

	for _, p := range d.ports {
		s.Ports = append(s.Ports, p.Stats())
	}

	return s
}
