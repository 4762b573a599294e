package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TimedAccess is an access that must not be issued before a cycle.
type TimedAccess struct {
	Cycle uint64
	Access
}

// Trace replays a fixed list of accesses in order. An access is issued in
// its cycle or, if the port is still busy, as soon after as possible.
type Trace struct {
	accesses []TimedAccess
	next     int
}

// NewTrace creates a generator over the accesses.
func NewTrace(accesses []TimedAccess) *Trace {
	return &Trace{accesses: accesses}
}

// Next returns the next access if its cycle has come.
func (t *Trace) Next(cycle uint64) (Access, bool) {
	if t.Done() || t.accesses[t.next].Cycle > cycle {
		return Access{}, false
	}

	a := t.accesses[t.next].Access
	t.next++

	return a, true
}

// Done returns true after the last access.
func (t *Trace) Done() bool {
	return t.next >= len(t.accesses)
}

// Len returns the number of accesses in the trace.
func (t *Trace) Len() int {
	return len(t.accesses)
}

// LoadTrace reads a trace file. See ParseTrace for the format.
func LoadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}
	defer f.Close()

	t, err := ParseTrace(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// ParseTrace reads one access per line in the form "[cycle] LD|ST addr".
// Addresses may be decimal or 0x-prefixed hex. Empty lines and lines that
// start with # are skipped. Lines without a cycle are issued right after the
// previous access.
func ParseTrace(r io.Reader) (*Trace, error) {
	var accesses []TimedAccess

	scanner := bufio.NewScanner(r)
	lineNo := 0
	cycle := uint64(0)

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		a, err := parseTraceLine(line, cycle)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if len(accesses) > 0 && a.Cycle < accesses[len(accesses)-1].Cycle {
			return nil, fmt.Errorf("line %d: cycle %d goes backwards",
				lineNo, a.Cycle)
		}

		accesses = append(accesses, a)
		cycle = a.Cycle
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewTrace(accesses), nil
}

func parseTraceLine(line string, cycle uint64) (TimedAccess, error) {
	fields := strings.Fields(line)

	a := TimedAccess{Cycle: cycle}

	switch len(fields) {
	case 2:
	case 3:
		c, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return a, fmt.Errorf("bad cycle %q", fields[0])
		}

		a.Cycle = c
		fields = fields[1:]
	default:
		return a, fmt.Errorf("expected [cycle] LD|ST addr, got %q", line)
	}

	switch strings.ToUpper(fields[0]) {
	case "LD", "R", "READ":
	case "ST", "W", "WRITE":
		a.IsWrite = true
	default:
		return a, fmt.Errorf("unknown operation %q", fields[0])
	}

	addr, err := strconv.ParseInt(fields[1], 0, 64)
	if err != nil {
		return a, fmt.Errorf("bad address %q", fields[1])
	}

	a.Addr = addr

	return a, nil
}
