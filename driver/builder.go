package driver

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

// Builder can build drivers.
type Builder struct {
	freq          sim.Freq
	maxCycles     uint64
	idleThreshold uint64
	logger        logrus.FieldLogger
	locker        Locker
	hooks         []hooking.Hook
}

// MakeBuilder returns a builder that stops after 100000 cycles or after 100
// idle cycles.
func MakeBuilder() Builder {
	return Builder{
		maxCycles:     100000,
		idleThreshold: 100,
		logger:        logrus.StandardLogger(),
	}
}

// WithFreq sets the frequency of the driver clock. Each bridge then ticks as
// often as its own clock period allows within one driver cycle. Without a
// frequency every bridge ticks once per driver cycle.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMaxCycles sets the number of cycles after which Run stops. Zero
// means no limit.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// WithIdleThreshold sets the number of consecutive idle cycles after which
// Run stops. Zero disables the check.
func (b Builder) WithIdleThreshold(n uint64) Builder {
	b.idleThreshold = n
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithLocker makes the driver hold the locker while it runs a cycle.
func (b Builder) WithLocker(l Locker) Builder {
	b.locker = l
	return b
}

// WithHooks registers hooks on the driver to build.
func (b Builder) WithHooks(hooks ...hooking.Hook) Builder {
	b.hooks = append(append([]hooking.Hook(nil), b.hooks...), hooks...)
	return b
}

// Build creates a driver.
func (b Builder) Build(name string) *Driver {
	sim.NameMustBeValid(name)

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &Driver{
		HookableBase:  hooking.NewHookableBase(),
		name:          name,
		log:           logger.WithField("driver", name),
		freq:          b.freq,
		maxCycles:     b.maxCycles,
		idleThreshold: b.idleThreshold,
		locker:        b.locker,
	}

	for _, h := range b.hooks {
		d.AcceptHook(h)
	}

	return d
}
