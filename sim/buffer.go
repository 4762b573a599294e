package sim

import (
	"log"

	"github.com/sarchlab/membridge/sim/hooking"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &hooking.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &hooking.HookPos{Name: "Buffer Pop"}

// A Buffer is a bounded fifo queue. Engines use it for admission and
// scheduling queues so that occupancy can be monitored from outside.
type Buffer interface {
	hooking.Hookable

	Name() string
	CanPush() bool
	Push(e any)
	Pop() any
	Peek() any
	Capacity() int
	Size() int

	// Remove removes the element at index i, keeping the order of the rest.
	Remove(i int) any

	// Get returns the element at index i without removing it.
	Get(i int) any

	// Clear removes all elements in the buffer.
	Clear()
}

// NewBuffer creates a default buffer object.
func NewBuffer(name string, capacity int) Buffer {
	NameMustBeValid(name)

	if capacity <= 0 {
		log.Panicf("buffer %s must have a positive capacity", name)
	}

	return &bufferImpl{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		capacity:     capacity,
	}
}

type bufferImpl struct {
	*hooking.HookableBase

	name     string
	capacity int
	elements []any
}

// Name returns the name of the buffer.
func (b *bufferImpl) Name() string {
	return b.name
}

func (b *bufferImpl) CanPush() bool {
	return len(b.elements) < b.capacity
}

func (b *bufferImpl) Push(e any) {
	if len(b.elements) >= b.capacity {
		log.Panicf("buffer %s overflow", b.name)
	}

	b.elements = append(b.elements, e)

	b.invoke(HookPosBufPush, e)
}

func (b *bufferImpl) Pop() any {
	if len(b.elements) == 0 {
		return nil
	}

	return b.Remove(0)
}

func (b *bufferImpl) Remove(i int) any {
	if i < 0 || i >= len(b.elements) {
		log.Panicf("buffer %s has no element at %d", b.name, i)
	}

	e := b.elements[i]
	b.elements = append(b.elements[:i], b.elements[i+1:]...)

	b.invoke(HookPosBufPop, e)

	return e
}

func (b *bufferImpl) invoke(pos *hooking.HookPos, e any) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   e,
	})
}

func (b *bufferImpl) Peek() any {
	if len(b.elements) == 0 {
		return nil
	}

	return b.elements[0]
}

func (b *bufferImpl) Get(i int) any {
	return b.elements[i]
}

func (b *bufferImpl) Capacity() int {
	return b.capacity
}

func (b *bufferImpl) Size() int {
	return len(b.elements)
}

func (b *bufferImpl) Clear() {
	b.elements = nil
}
