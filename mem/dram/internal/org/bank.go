// Package org models the state of DRAM banks that the reference engine needs
// to estimate access latency.
package org

// RowClosed is the open row of a precharged bank.
const RowClosed = -1

// Timing holds the DRAM timing parameters in DRAM cycles.
type Timing struct {
	CL  int
	RCD int
	RP  int
	BL  int
	WR  int
}

// RowState classifies an access by the state of the bank it touches.
type RowState int

// A list of all row states.
const (
	RowHit RowState = iota
	RowMiss
	RowConflict
)

func (s RowState) String() string {
	switch s {
	case RowHit:
		return "hit"
	case RowMiss:
		return "miss"
	default:
		return "conflict"
	}
}

// A Bank is a DRAM bank with at most one open row.
type Bank struct {
	OpenRow   int64
	BusyUntil int64
}

// NewBank returns a precharged bank.
func NewBank() *Bank {
	return &Bank{OpenRow: RowClosed}
}

// IsReady returns true if the bank can start an access at the cycle.
func (b *Bank) IsReady(cycle int64) bool {
	return b.BusyUntil <= cycle
}

// Classify tells how an access to the row would find the bank.
func (b *Bank) Classify(row int64) RowState {
	switch b.OpenRow {
	case row:
		return RowHit
	case RowClosed:
		return RowMiss
	default:
		return RowConflict
	}
}

// Access starts an access to the row at the cycle and returns the number of
// cycles until the data is transferred. A write keeps the bank busy for the
// write recovery time after that.
func (b *Bank) Access(
	t Timing,
	row int64,
	isWrite bool,
	cycle int64,
) (latency int64, state RowState) {
	state = b.Classify(row)

	latency = int64(t.CL + t.BL)
	switch state {
	case RowMiss:
		latency += int64(t.RCD)
	case RowConflict:
		latency += int64(t.RP + t.RCD)
	}

	b.OpenRow = row
	b.BusyUntil = cycle + latency

	if isWrite {
		b.BusyUntil += int64(t.WR)
	}

	return latency, state
}

// Channel holds the banks that share one data bus, indexed by rank, bank
// group, and bank.
type Channel struct {
	Banks [][][]*Bank
}

// NewChannel creates a channel whose banks are all precharged.
func NewChannel(numRank, numBankGroup, numBank int) *Channel {
	c := &Channel{Banks: make([][][]*Bank, numRank)}

	for i := 0; i < numRank; i++ {
		c.Banks[i] = make([][]*Bank, numBankGroup)

		for j := 0; j < numBankGroup; j++ {
			c.Banks[i][j] = make([]*Bank, numBank)

			for k := 0; k < numBank; k++ {
				c.Banks[i][j][k] = NewBank()
			}
		}
	}

	return c
}

// Bank returns the bank at the given coordinate.
func (c *Channel) Bank(rank, bankGroup, bank uint64) *Bank {
	return c.Banks[rank][bankGroup][bank]
}
