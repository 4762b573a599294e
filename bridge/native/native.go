// Package native represents completions as an entry point and an opaque
// context so that they can cross a foreign function boundary.
//
// A caller on the other side of the boundary hands over a function pointer
// and a context pointer. The Go side wraps the pair in a Pair and passes it
// to Bridge.SendRequest. A Go caller that wants to exercise the same path
// binds a closure with a Registry, which stores the closure under a fresh
// Context and returns the Pair that refers to it.
package native

import (
	"sync/atomic"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
)

// RequestState is the final state of a request as reported across the
// boundary.
type RequestState struct {
	Addr    int64
	Arrive  int64
	Depart  int64
	IsWrite bool
}

// StateOf extracts the boundary state from a completed request.
func StateOf(req mem.Request) RequestState {
	return RequestState{
		Addr:    req.Addr,
		Arrive:  req.Arrive,
		Depart:  req.Depart,
		IsWrite: req.IsWrite(),
	}
}

// Context is an opaque value owned by the side that created the pair. The
// zero Context is never handed out by a Registry.
type Context uintptr

// EntryPoint is invoked once per completed request with the request state
// and the context it was bound with. The state is only valid during the
// call.
type EntryPoint func(state *RequestState, ctx Context)

const (
	pairPending int32 = iota
	pairCompleted
	pairDisposed
)

// Pair is a Completion made of an entry point and a context.
type Pair struct {
	Entry EntryPoint
	Ctx   Context

	// OnDispose, if set, is called with the context when the pair is
	// disposed without being completed.
	OnDispose func(ctx Context)

	state atomic.Int32
}

// NewPair creates a pair. The entry point must not be nil.
func NewPair(entry EntryPoint, ctx Context) *Pair {
	if entry == nil {
		panic("native: nil entry point")
	}

	return &Pair{Entry: entry, Ctx: ctx}
}

// Complete invokes the entry point with the state of req.
func (p *Pair) Complete(req mem.Request) {
	if !p.state.CompareAndSwap(pairPending, pairCompleted) {
		panic(violation(p.Ctx, p.state.Load()))
	}

	state := StateOf(req)
	p.Entry(&state, p.Ctx)
}

// Dispose marks the pair as never bound and releases the context.
func (p *Pair) Dispose() {
	if !p.state.CompareAndSwap(pairPending, pairDisposed) {
		panic(violation(p.Ctx, p.state.Load()))
	}

	if p.OnDispose != nil {
		p.OnDispose(p.Ctx)
	}
}

var _ bridge.Completion = (*Pair)(nil)
