// Package analysis turns hook events into performance metrics.
package analysis

import (
	"sync"

	"github.com/sarchlab/membridge/datarecording"
)

// PerfEntry is one metric measured over a range of cycles.
type PerfEntry struct {
	StartCycle uint64
	EndCycle   uint64
	Location   string
	Metric     string
	EntryType  string
	Value      float64
	Unit       string
}

// PerfLogger is the interface that provide the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfEntry)
}

// MemoryLogger keeps the entries in memory.
type MemoryLogger struct {
	lock    sync.Mutex
	entries []PerfEntry
}

// AddDataEntry appends the entry.
func (l *MemoryLogger) AddDataEntry(entry PerfEntry) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the entries logged so far.
func (l *MemoryLogger) Entries() []PerfEntry {
	l.lock.Lock()
	defer l.lock.Unlock()

	return append([]PerfEntry(nil), l.entries...)
}

// PerfTable is the table that a RecorderLogger writes to.
const PerfTable = "perf"

// RecorderLogger writes entries into a data recorder.
type RecorderLogger struct {
	recorder datarecording.DataRecorder
}

// NewRecorderLogger creates the perf table in the recorder.
func NewRecorderLogger(recorder datarecording.DataRecorder) *RecorderLogger {
	recorder.CreateTable(PerfTable, PerfEntry{})

	return &RecorderLogger{recorder: recorder}
}

// AddDataEntry buffers the entry in the recorder.
func (l *RecorderLogger) AddDataEntry(entry PerfEntry) {
	l.recorder.InsertData(PerfTable, entry)
}

// Loggers forwards every entry to all its loggers.
type Loggers []PerfLogger

// AddDataEntry forwards the entry.
func (ls Loggers) AddDataEntry(entry PerfEntry) {
	for _, l := range ls {
		l.AddDataEntry(entry)
	}
}
