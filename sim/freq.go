package sim

import (
	"log"
	"math"
)

// VTimeInSec is a duration or point of virtual time, in seconds.
type VTimeInSec float64

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// FreqFromPeriodNS converts a clock period expressed in nanoseconds, such as
// a DRAM tCK, into a frequency.
func FreqFromPeriodNS(ns float64) Freq {
	if ns <= 0 || math.IsNaN(ns) || math.IsInf(ns, 0) {
		log.Panicf("invalid clock period %g ns", ns)
	}

	return Freq(1e9 / ns)
}

// Period returns the time between two consecutive ticks
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// PeriodNS returns the time between two consecutive ticks in nanoseconds.
func (f Freq) PeriodNS() float64 {
	return float64(f.Period()) * 1e9
}

// Cycle converts a time to the number of cycles passed since time 0.
func (f Freq) Cycle(time VTimeInSec) uint64 {
	if math.IsNaN(float64(time)) || time < 0 {
		log.Panic("invalid time")
	}

	return uint64(math.Round(float64(time) * float64(f)))
}

// CyclesIn converts a number of cycles in the other clock domain into the
// number of whole cycles of this domain that elapse in the same time,
// rounded down.
//
//	other: |----|----|----|----|----|----|
//	f:     |---------|---------|---------|
//	       CyclesIn(other, 5) == 2
func (f Freq) CyclesIn(other Freq, n uint64) uint64 {
	if other == 0 {
		log.Panic("frequency cannot be 0")
	}

	exact := float64(n) * float64(f) / float64(other)

	return uint64(math.Floor(exact + 1e-9))
}
