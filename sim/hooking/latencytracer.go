package hooking

import (
	"sync"
)

// LatencyTracer collects the number of completed tasks and the total and
// average number of cycles they took. Overlapping tasks are simply added
// together.
type LatencyTracer struct {
	cycleTeller   CycleTeller
	filter        TaskFilter
	lock          sync.Mutex
	inflightTasks map[string]uint64
	totalCycles   uint64
	maxCycles     uint64
	taskCount     uint64
}

// NewLatencyTracer creates a new LatencyTracer. A nil filter accepts every
// task.
func NewLatencyTracer(
	cycleTeller CycleTeller,
	filter TaskFilter,
) *LatencyTracer {
	if filter == nil {
		filter = func(TaskStart) bool { return true }
	}

	return &LatencyTracer{
		cycleTeller:   cycleTeller,
		filter:        filter,
		inflightTasks: make(map[string]uint64),
	}
}

// Func records the start end of a task.
func (t *LatencyTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// StartTask records the task start cycle.
func (t *LatencyTracer) StartTask(taskStart TaskStart) {
	if !t.filter(taskStart) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[taskStart.ID] = t.cycleTeller.CurrentCycle()
	t.lock.Unlock()
}

// EndTask records the end of the task.
func (t *LatencyTracer) EndTask(taskEnd TaskEnd) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflightTasks[taskEnd.ID]
	if !ok {
		return
	}

	latency := t.cycleTeller.CurrentCycle() - start

	t.totalCycles += latency
	if latency > t.maxCycles {
		t.maxCycles = latency
	}
	t.taskCount++

	delete(t.inflightTasks, taskEnd.ID)
}

// TotalCount returns the number of completed tasks.
func (t *LatencyTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// TotalCycles returns the sum of the latencies of all completed tasks.
func (t *LatencyTracer) TotalCycles() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalCycles
}

// MaxCycles returns the longest latency observed.
func (t *LatencyTracer) MaxCycles() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxCycles
}

// AverageCycles returns the average latency of the completed tasks, or 0 if
// none completed.
func (t *LatencyTracer) AverageCycles() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.taskCount == 0 {
		return 0
	}

	return float64(t.totalCycles) / float64(t.taskCount)
}

// InflightCount returns the number of tasks started but not ended.
func (t *LatencyTracer) InflightCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflightTasks)
}
