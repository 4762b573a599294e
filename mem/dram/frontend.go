package dram

import (
	"log"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

// Frontend admits external requests into a bounded queue and forwards them
// to the memory system in arrival order.
type Frontend struct {
	*hooking.HookableBase

	name  string
	queue sim.Buffer
	ms    bridge.MemorySystem
	cycle int64

	admitted uint64
	rejected uint64
}

// Name returns the name of the frontend.
func (f *Frontend) Name() string {
	return f.name
}

// CurrentCycle returns the number of cycles the frontend has ticked.
func (f *Frontend) CurrentCycle() uint64 {
	return uint64(f.cycle)
}

// Buffers returns the admission queue.
func (f *Frontend) Buffers() []sim.Buffer {
	return []sim.Buffer{f.queue}
}

// ConnectMemorySystem sets the memory system that requests are forwarded to.
func (f *Frontend) ConnectMemorySystem(ms bridge.MemorySystem) {
	f.ms = ms
}

// ReceiveExternalRequest stamps the request with the current cycle and
// queues it. It returns false if the queue is full.
func (f *Frontend) ReceiveExternalRequest(req *mem.Request) bool {
	if !f.queue.CanPush() {
		f.rejected++
		return false
	}

	req.Arrive = f.cycle
	f.queue.Push(req)
	f.admitted++

	return true
}

// Tick forwards as many queued requests as the memory system takes.
func (f *Frontend) Tick() {
	f.forward()
	f.cycle++
}

func (f *Frontend) forward() {
	if f.ms == nil {
		log.Panicf("frontend %s is not connected to a memory system", f.name)
	}

	for f.queue.Size() > 0 {
		req := f.queue.Peek().(*mem.Request)
		if !f.ms.Send(req) {
			return
		}

		f.queue.Pop()
	}
}

// Finalize does nothing. Requests left in the queue are never forwarded.
func (f *Frontend) Finalize() {}

// Stats reports the admission counters.
func (f *Frontend) Stats() map[string]float64 {
	return map[string]float64{
		"frontend.admitted": float64(f.admitted),
		"frontend.rejected": float64(f.rejected),
		"frontend.queued":   float64(f.queue.Size()),
	}
}
