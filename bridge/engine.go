package bridge

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/mem"
)

// Frontend is the admission half of a memory timing engine.
type Frontend interface {
	// ConnectMemorySystem registers a non-owning reference to the memory
	// system. A nil argument breaks the link during teardown.
	ConnectMemorySystem(ms MemorySystem)

	// ReceiveExternalRequest takes ownership of req and sets its arrival
	// cycle, or returns false without touching req when the admission
	// queue is full.
	ReceiveExternalRequest(req *mem.Request) bool

	// Tick advances the frontend by one cycle. Requests it hands to the
	// memory system must be visible to the memory system tick of the same
	// cycle.
	Tick()

	// Finalize flushes deferred bookkeeping.
	Finalize()
}

// MemorySystem is the timing half of a memory timing engine. When a request
// completes, the memory system sets its departure cycle and calls its
// OnDepart function exactly once.
type MemorySystem interface {
	// ConnectFrontend registers a non-owning reference to the frontend. A
	// nil argument breaks the link during teardown.
	ConnectFrontend(fe Frontend)

	// Send hands a request over from the frontend. It returns false if the
	// memory system cannot take the request in this cycle.
	Send(req *mem.Request) bool

	// Tick advances the memory system by one cycle.
	Tick()

	// TCK returns the DRAM clock period in nanoseconds.
	TCK() float64

	// Finalize flushes deferred bookkeeping.
	Finalize()
}

// A Releaser frees resources that the garbage collector does not manage,
// such as native engine objects.
type Releaser interface {
	Release()
}

// A StatsReporter reports engine statistics after finalization.
type StatsReporter interface {
	Stats() map[string]float64
}

// EngineFactory creates the two halves of an engine from a validated
// configuration. The halves must not be connected yet.
type EngineFactory func(cfg *config.Config) (Frontend, MemorySystem, error)

var (
	engineRegistryLock sync.RWMutex
	engineRegistry     = map[string]EngineFactory{}
)

// RegisterEngine makes an engine available under a name that configurations
// refer to with their Engine key. Registering a name twice panics.
func RegisterEngine(name string, factory EngineFactory) {
	engineRegistryLock.Lock()
	defer engineRegistryLock.Unlock()

	if factory == nil {
		panic("bridge: nil engine factory for " + name)
	}

	if _, dup := engineRegistry[name]; dup {
		panic("bridge: engine " + name + " registered twice")
	}

	engineRegistry[name] = factory
}

// Engines returns the names of all registered engines, sorted.
func Engines() []string {
	engineRegistryLock.RLock()
	defer engineRegistryLock.RUnlock()

	return namesLocked()
}

func lookupEngine(name string) (EngineFactory, error) {
	engineRegistryLock.RLock()
	defer engineRegistryLock.RUnlock()

	factory, ok := engineRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: engine %q is not registered (have %v)",
			config.ErrInvalid, name, namesLocked())
	}

	return factory, nil
}

func namesLocked() []string {
	names := make([]string, 0, len(engineRegistry))
	for name := range engineRegistry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
