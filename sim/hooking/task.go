package hooking

// A list of hook poses for the hooks to apply to
var (
	HookPosTaskStart = &HookPos{Name: "HookPosTaskStart"}
	HookPosTaskEnd   = &HookPos{Name: "HookPosTaskEnd"}
)

// TaskStart is data that is passed to the hook when a task starts.
type TaskStart struct {
	ID       string
	ParentID string
	Kind     string
	What     string
	Where    string
}

// TaskEnd is data that is passed to the hook when a task ends.
type TaskEnd struct {
	ID string
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t TaskStart) bool

// A CycleTeller can tell the current cycle. It is declared here so that
// tracers do not need to import the packages that own the clock.
type CycleTeller interface {
	CurrentCycle() uint64
}
