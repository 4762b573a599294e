// Package mem defines the memory access request that travels between a
// bridge and a memory timing engine.
package mem

import (
	"fmt"

	"github.com/sarchlab/membridge/sim"
)

// CycleUndefined marks a cycle field that has not been set yet.
const CycleUndefined int64 = -1

// AccessKind tells whether a request reads or writes memory.
type AccessKind int

// A list of all access kinds.
const (
	Read AccessKind = iota
	Write
)

func (k AccessKind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// KindOf returns Write if isWrite is set and Read otherwise.
func KindOf(isWrite bool) AccessKind {
	if isWrite {
		return Write
	}

	return Read
}

// A Request is one pending memory access. The engine owns it from admission
// until completion and fills Arrive and Depart in its own cycle count.
type Request struct {
	ID     string
	Addr   int64
	Kind   AccessKind
	Source int

	Arrive int64
	Depart int64

	// OnDepart is called by the engine once, right after Depart is set.
	OnDepart func(req *Request)
}

// IsWrite returns true if the request writes memory.
func (r *Request) IsWrite() bool {
	return r.Kind == Write
}

// IsCompleted returns true once the engine has set the departure cycle.
func (r *Request) IsCompleted() bool {
	return r.Depart != CycleUndefined
}

// Latency returns the number of cycles between arrival and departure.
func (r *Request) Latency() int64 {
	if !r.IsCompleted() {
		panic("request " + r.ID + " has not departed")
	}

	return r.Depart - r.Arrive
}

// Complete records the departure cycle and calls OnDepart.
func (r *Request) Complete(cycle int64) {
	r.MarkDeparted(cycle)

	if r.OnDepart != nil {
		r.OnDepart(r)
	}
}

// MarkDeparted records the departure cycle. Departing before arrival or
// departing twice violates the engine contract and panics.
func (r *Request) MarkDeparted(cycle int64) {
	if r.IsCompleted() {
		panic("request " + r.ID + " departed twice")
	}

	if cycle < r.Arrive {
		panic(fmt.Sprintf(
			"request %s departs at %d before it arrives at %d",
			r.ID, cycle, r.Arrive))
	}

	r.Depart = cycle
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s 0x%x [%d, %d]",
		r.ID, r.Kind, r.Addr, r.Arrive, r.Depart)
}

// RequestBuilder can build requests.
type RequestBuilder struct {
	addr     int64
	kind     AccessKind
	source   int
	arrive   int64
	onDepart func(*Request)
}

// WithAddress sets the address of the request to build.
func (b RequestBuilder) WithAddress(addr int64) RequestBuilder {
	b.addr = addr
	return b
}

// WithKind sets the access kind of the request to build.
func (b RequestBuilder) WithKind(kind AccessKind) RequestBuilder {
	b.kind = kind
	return b
}

// WithSource sets the ID of the port that issues the request.
func (b RequestBuilder) WithSource(source int) RequestBuilder {
	b.source = source
	return b
}

// WithArrive sets the arrival cycle of the request to build.
func (b RequestBuilder) WithArrive(cycle int64) RequestBuilder {
	b.arrive = cycle
	return b
}

// WithOnDepart sets the function the engine calls when the request
// completes.
func (b RequestBuilder) WithOnDepart(f func(*Request)) RequestBuilder {
	b.onDepart = f
	return b
}

// Build creates a new Request that has not departed.
func (b RequestBuilder) Build() *Request {
	return &Request{
		ID:     sim.GetIDGenerator().Generate(),
		Addr:   b.addr,
		Kind:   b.kind,
		Source: b.source,
		Arrive: b.arrive,
		Depart: CycleUndefined,

		OnDepart: b.onDepart,
	}
}
