package config

import (
	"fmt"
	"math/bits"
)

// Validate checks that a completed configuration can be turned into an
// engine. Engines other than the reference engine validate their own
// parameters.
func (c *Config) Validate() error {
	if c.Engine == "" {
		return fmt.Errorf("%w: engine is not set", ErrInvalid)
	}

	if c.Engine != EngineReference {
		return nil
	}

	checks := []struct {
		name  string
		value int
		pow2  bool
	}{
		{"Frontend.clock_ratio", c.Frontend.ClockRatio, false},
		{"Frontend.queue_size", c.Frontend.QueueSize, false},
		{"MemorySystem.clock_ratio", c.MemorySystem.ClockRatio, false},
		{"MemorySystem.Controller.queue_size", c.MemorySystem.Controller.QueueSize, false},
		{"org.channel", c.MemorySystem.DRAM.Org.Channel, true},
		{"org.rank", c.MemorySystem.DRAM.Org.Rank, true},
		{"org.bankgroup", c.MemorySystem.DRAM.Org.BankGroup, true},
		{"org.bank", c.MemorySystem.DRAM.Org.Bank, true},
		{"org.row", c.MemorySystem.DRAM.Org.Row, true},
		{"org.column", c.MemorySystem.DRAM.Org.Column, true},
		{"timing.nCL", c.MemorySystem.DRAM.Timing.NCL, false},
		{"timing.nRCD", c.MemorySystem.DRAM.Timing.NRCD, false},
		{"timing.nRP", c.MemorySystem.DRAM.Timing.NRP, false},
		{"timing.nBL", c.MemorySystem.DRAM.Timing.NBL, false},
		{"timing.nWR", c.MemorySystem.DRAM.Timing.NWR, false},
	}

	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d",
				ErrInvalid, check.name, check.value)
		}

		if check.pow2 && bits.OnesCount(uint(check.value)) != 1 {
			return fmt.Errorf("%w: %s must be a power of two, got %d",
				ErrInvalid, check.name, check.value)
		}
	}

	if c.MemorySystem.DRAM.Timing.TCK <= 0 {
		return fmt.Errorf("%w: timing.tCK must be positive, got %g",
			ErrInvalid, c.MemorySystem.DRAM.Timing.TCK)
	}

	switch c.MemorySystem.Controller.Scheduler.Impl {
	case SchedulerFRFCFS, SchedulerFCFS:
	default:
		return fmt.Errorf("%w: unknown scheduler %q",
			ErrInvalid, c.MemorySystem.Controller.Scheduler.Impl)
	}

	switch c.MemorySystem.AddrMapper.Impl {
	case MapperRoBaRaCoCh, MapperChRaBaRoCo:
	default:
		return fmt.Errorf("%w: unknown address mapper %q",
			ErrInvalid, c.MemorySystem.AddrMapper.Impl)
	}

	return nil
}
