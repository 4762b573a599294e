// Package workload generates the address streams that drive bridges in tests
// and in the membridge command.
package workload

import (
	"fmt"
)

// Access is one memory access that a port wants to issue.
type Access struct {
	Addr    int64
	IsWrite bool
}

func (a Access) String() string {
	op := "LD"
	if a.IsWrite {
		op = "ST"
	}

	return fmt.Sprintf("%s 0x%x", op, a.Addr)
}

// A Generator decides what a port issues in each cycle. The driver calls
// Next at most once per cycle and keeps retrying a returned access until it
// is admitted, without calling Next again in between.
type Generator interface {
	// Next returns the access to issue in the cycle. It returns false if
	// there is nothing to issue in this cycle.
	Next(cycle uint64) (Access, bool)

	// Done returns true once the generator will never issue again.
	Done() bool
}

// Alternating issues reads and writes in turn to a small window of
// addresses. Access n goes to address (n & Mask) * Stride and is a write if
// n is odd.
type Alternating struct {
	Mask     int64
	Stride   int64
	Interval uint64
	Count    uint64

	issued uint64
}

// NewAlternating creates a generator that issues count accesses, one every
// cycle, to addresses 0 to 255. A count of 0 never stops.
func NewAlternating(count uint64) *Alternating {
	return &Alternating{Mask: 0xff, Stride: 1, Interval: 1, Count: count}
}

// Next returns the next access if the cycle is a multiple of the interval.
func (g *Alternating) Next(cycle uint64) (Access, bool) {
	if g.Done() {
		return Access{}, false
	}

	if g.Interval > 1 && cycle%g.Interval != 0 {
		return Access{}, false
	}

	n := g.issued
	g.issued++

	stride := g.Stride
	if stride == 0 {
		stride = 1
	}

	return Access{
		Addr:    (int64(n) & g.Mask) * stride,
		IsWrite: n%2 == 1,
	}, true
}

// Done returns true after Count accesses.
func (g *Alternating) Done() bool {
	return g.Count > 0 && g.issued >= g.Count
}
