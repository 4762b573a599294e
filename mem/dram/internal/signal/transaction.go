// Package signal defines the state that the reference engine keeps per
// request.
package signal

import (
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/mem/dram/internal/addressmapping"
)

// Transaction is the state associated with the processing of a read or write
// request.
type Transaction struct {
	Req      *mem.Request
	Location addressmapping.Location

	// Accepted is the memory system cycle at which the transaction entered
	// the controller queue.
	Accepted int64

	// DoneAt is the cycle at which the data transfer finishes. It is only
	// valid after the transaction is issued.
	DoneAt int64
}

// IsRead returns true if the transaction is a read transaction.
func (t *Transaction) IsRead() bool {
	return !t.Req.IsWrite()
}

// IsWrite returns true if the transaction is a write transaction.
func (t *Transaction) IsWrite() bool {
	return t.Req.IsWrite()
}

// IsCompleted returns true if the transaction is fully ready to be returned.
func (t *Transaction) IsCompleted(cycle int64) bool {
	return t.DoneAt <= cycle
}
