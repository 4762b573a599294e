package bridge

import (
	"sync/atomic"

	"github.com/sarchlab/membridge/mem"
)

// A Completion is a single-shot notification bound to one request at
// admission.
//
// Complete is called exactly once, after the request departs, with a copy of
// its final state. Dispose is called instead when the request was never
// admitted, or when the Bridge is destroyed while the request is still in
// flight. An implementation must not be reused for a second request.
type Completion interface {
	Complete(req mem.Request)
	Dispose()
}

const (
	completionPending int32 = iota
	completionDone
	completionDisposed
)

// funcCompletion is the in-process variant that captures a closure.
type funcCompletion struct {
	fn    func(req mem.Request)
	state atomic.Int32
}

// NewCompletion wraps a closure as a Completion. The closure runs at most
// once; a second Complete or a Complete after Dispose panics with
// ErrBoundaryContractViolation.
func NewCompletion(fn func(req mem.Request)) Completion {
	if fn == nil {
		panic("bridge: nil completion function")
	}

	return &funcCompletion{fn: fn}
}

func (c *funcCompletion) Complete(req mem.Request) {
	if !c.state.CompareAndSwap(completionPending, completionDone) {
		panic(boundaryViolation(
			"completion of request %s invoked in state %d",
			req.ID, c.state.Load()))
	}

	fn := c.fn
	c.fn = nil
	fn(req)
}

func (c *funcCompletion) Dispose() {
	if !c.state.CompareAndSwap(completionPending, completionDisposed) {
		panic(boundaryViolation(
			"completion disposed in state %d", c.state.Load()))
	}

	c.fn = nil
}
