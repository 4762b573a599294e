package bridge

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

// Builder can build bridges.
type Builder struct {
	engine EngineFactory
	logger logrus.FieldLogger
	hooks  []hooking.Hook
}

// MakeBuilder returns a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		logger: logrus.StandardLogger(),
	}
}

// WithEngine makes the bridge create its engine with the given factory
// instead of the one registered under the configured engine name.
func (b Builder) WithEngine(factory EngineFactory) Builder {
	b.engine = factory
	return b
}

// WithLogger sets the logger of the bridge.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithHooks registers hooks on the bridge to build.
func (b Builder) WithHooks(hooks ...hooking.Hook) Builder {
	b.hooks = append(append([]hooking.Hook(nil), b.hooks...), hooks...)
	return b
}

// Build creates a Bridge that still needs to be initialized.
func (b Builder) Build(name string) *Bridge {
	sim.NameMustBeValid(name)

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	bridge := &Bridge{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		log:          logger.WithField("bridge", name),
		engine:       b.engine,
	}

	for _, h := range b.hooks {
		bridge.AcceptHook(h)
	}

	return bridge
}

// New is a shorthand for MakeBuilder().Build(name).
func New(name string) *Bridge {
	return MakeBuilder().Build(name)
}
