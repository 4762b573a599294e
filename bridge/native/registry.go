package native

import (
	"fmt"
	"sync"

	"github.com/sarchlab/membridge/bridge"
)

// A Handler receives the final state of a request.
type Handler func(state RequestState)

// A Registry keeps handlers alive while their contexts are in flight. It is
// safe for concurrent use.
type Registry struct {
	lock     sync.Mutex
	last     Context
	handlers map[Context]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Context]Handler)}
}

// Bind stores the handler under a context that has never been used before
// and returns the pair that delivers to it. Disposing the pair releases the
// context.
func (r *Registry) Bind(h Handler) *Pair {
	if h == nil {
		panic("native: nil handler")
	}

	r.lock.Lock()
	r.last++
	ctx := r.last
	r.handlers[ctx] = h
	r.lock.Unlock()

	p := NewPair(r.Deliver, ctx)
	p.OnDispose = r.Dispose

	return p
}

// Resolve removes and returns the handler bound to ctx. Resolving a context
// that is unknown or already released panics.
func (r *Registry) Resolve(ctx Context) Handler {
	r.lock.Lock()
	defer r.lock.Unlock()

	h, ok := r.handlers[ctx]
	if !ok {
		panic(unknownContext(ctx))
	}

	delete(r.handlers, ctx)

	return h
}

// Deliver is the entry point of the pairs that the registry creates. It
// resolves the context and calls the handler.
func (r *Registry) Deliver(state *RequestState, ctx Context) {
	h := r.Resolve(ctx)
	h(*state)
}

// Dispose releases a context whose handler will never be called.
func (r *Registry) Dispose(ctx Context) {
	r.Resolve(ctx)
}

// Len returns the number of contexts in flight.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.handlers)
}

func unknownContext(ctx Context) error {
	return fmt.Errorf("%w: context %#x is not bound",
		bridge.ErrBoundaryContractViolation, uintptr(ctx))
}

func violation(ctx Context, state int32) error {
	what := "completed"
	if state == pairDisposed {
		what = "disposed"
	}

	return fmt.Errorf("%w: context %#x was already %s",
		bridge.ErrBoundaryContractViolation, uintptr(ctx), what)
}
