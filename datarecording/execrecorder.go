package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTable is the table that holds information about the run.
const ExecTable = "exec_info"

// ExecEntry is one property of the run.
type ExecEntry struct {
	Property string
	Value    string
}

// ExecRecorder records when and how the program was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecEntry
	now      func() time.Time
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTable, ExecEntry{})

	return &ExecRecorder{
		recorder: recorder,
		now:      time.Now,
	}
}

const timeLayout = "2006-01-02 15:04:05.000000000"

// Start notes the start time, the command line, and the working directory.
func (e *ExecRecorder) Start() {
	e.Add("Start Time", e.now().Format(timeLayout))
	e.Add("Command", strings.Join(os.Args, " "))

	if cwd, err := os.Getwd(); err == nil {
		e.Add("Working Directory", cwd)
	}
}

// Add notes an arbitrary property, such as the configuration file used.
func (e *ExecRecorder) Add(property, value string) {
	e.entries = append(e.entries, ExecEntry{Property: property, Value: value})
}

// End writes all properties together with the end time.
func (e *ExecRecorder) End() {
	e.Add("End Time", e.now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
