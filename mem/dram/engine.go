// Package dram provides the reference memory timing engine. It keeps a
// bounded admission queue in the frontend, maps addresses to banks, and
// charges row hit, row miss, and row conflict latencies in the memory
// controller. The engine registers itself with the bridge under
// config.EngineReference.
package dram

import (
	"fmt"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
)

func init() {
	bridge.RegisterEngine(config.EngineReference, NewEngine)
}

// MakeBuilderFromConfig returns a builder that follows the configuration.
// The clock ratios are not modeled; the frontend and the controller always
// tick together.
func MakeBuilderFromConfig(cfg *config.Config) Builder {
	ms := cfg.MemorySystem
	org := ms.DRAM.Org
	t := ms.DRAM.Timing

	return MakeBuilder().
		WithFrontendQueueSize(cfg.Frontend.QueueSize).
		WithTransactionQueueSize(ms.Controller.QueueSize).
		WithScheduler(ms.Controller.Scheduler.Impl).
		WithAddrMapping(ms.AddrMapper.Impl).
		WithNumChannel(org.Channel).
		WithNumRank(org.Rank).
		WithNumBankGroup(org.BankGroup).
		WithNumBank(org.Bank).
		WithNumRow(org.Row).
		WithNumCol(org.Column).
		WithTCK(t.TCK).
		WithTCL(t.NCL).
		WithTRCD(t.NRCD).
		WithTRP(t.NRP).
		WithTBL(t.NBL).
		WithTWR(t.NWR)
}

// NewEngine is the bridge.EngineFactory of the reference engine.
func NewEngine(cfg *config.Config) (bridge.Frontend, bridge.MemorySystem, error) {
	if cfg.Engine != config.EngineReference {
		return nil, nil, fmt.Errorf("%w: engine %q is not %q",
			config.ErrInvalid, cfg.Engine, config.EngineReference)
	}

	s, err := MakeBuilderFromConfig(cfg).Build("DRAM")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	return s.Frontend, s.Controller, nil
}
