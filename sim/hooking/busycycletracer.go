package hooking

import (
	"sync"
)

// BusyCycleTracer counts the cycles in which a domain has at least one task
// in flight. Overlapping tasks are counted once.
type BusyCycleTracer struct {
	cycleTeller CycleTeller
	filter      TaskFilter
	lock        sync.Mutex

	inflightTasks map[string]struct{}
	busySince     uint64
	busyCycles    uint64
}

// NewBusyCycleTracer creates a new BusyCycleTracer. A nil filter accepts
// every task.
func NewBusyCycleTracer(
	cycleTeller CycleTeller,
	filter TaskFilter,
) *BusyCycleTracer {
	return &BusyCycleTracer{
		cycleTeller:   cycleTeller,
		filter:        filter,
		inflightTasks: make(map[string]struct{}),
	}
}

// Func records the start end of a task.
func (t *BusyCycleTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// StartTask starts a busy period if no other task is in flight.
func (t *BusyCycleTracer) StartTask(taskStart TaskStart) {
	if t.filter != nil && !t.filter(taskStart) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.inflightTasks) == 0 {
		t.busySince = t.cycleTeller.CurrentCycle()
	}

	t.inflightTasks[taskStart.ID] = struct{}{}
}

// EndTask ends the busy period if it was the last task in flight.
func (t *BusyCycleTracer) EndTask(taskEnd TaskEnd) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.inflightTasks[taskEnd.ID]; !ok {
		return
	}

	delete(t.inflightTasks, taskEnd.ID)

	if len(t.inflightTasks) == 0 {
		t.busyCycles += t.cycleTeller.CurrentCycle() - t.busySince
	}
}

// BusyCycles returns the number of busy cycles so far, including the
// current busy period.
func (t *BusyCycleTracer) BusyCycles() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.inflightTasks) == 0 {
		return t.busyCycles
	}

	return t.busyCycles + t.cycleTeller.CurrentCycle() - t.busySince
}
