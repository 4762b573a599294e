// Package cmdq decides which queued transaction a channel serves next.
package cmdq

import (
	"fmt"

	"github.com/sarchlab/membridge/mem/dram/internal/org"
	"github.com/sarchlab/membridge/mem/dram/internal/signal"
)

// A Scheduler picks the next transaction to issue from the queue of one
// channel. The queue is ordered by arrival. It returns -1 if no transaction
// can be issued.
type Scheduler interface {
	Select(queue []*signal.Transaction, ch *org.Channel, cycle int64) int
}

// ByName returns the scheduler with the given name.
func ByName(name string) (Scheduler, error) {
	switch name {
	case "FRFCFS":
		return FRFCFS{}, nil
	case "FCFS":
		return FCFS{}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", name)
	}
}

func bankOf(ch *org.Channel, t *signal.Transaction) *org.Bank {
	l := t.Location
	return ch.Bank(l.Rank, l.BankGroup, l.Bank)
}

// FCFS serves transactions strictly in arrival order.
type FCFS struct{}

// Select returns 0 if the oldest transaction can be issued.
func (FCFS) Select(
	queue []*signal.Transaction,
	ch *org.Channel,
	cycle int64,
) int {
	if len(queue) == 0 || !bankOf(ch, queue[0]).IsReady(cycle) {
		return -1
	}

	return 0
}

// FRFCFS serves the oldest row hit first and falls back to the oldest
// transaction whose bank is ready.
type FRFCFS struct{}

// Select returns the index of the transaction to issue.
func (FRFCFS) Select(
	queue []*signal.Transaction,
	ch *org.Channel,
	cycle int64,
) int {
	oldestReady := -1

	for i, t := range queue {
		bank := bankOf(ch, t)
		if !bank.IsReady(cycle) {
			continue
		}

		if bank.Classify(int64(t.Location.Row)) == org.RowHit {
			return i
		}

		if oldestReady < 0 {
			oldestReady = i
		}
	}

	return oldestReady
}
