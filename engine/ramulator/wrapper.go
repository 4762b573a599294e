//go:build ramulator && cgo

package ramulator

/*
#cgo LDFLAGS: -lwrapper -lramulator
#include <stdlib.h>
#include "membridge_ramulator.h"

extern void membridgeRamulatorDone(membridge_ramulator_request* req,
	uintptr_t handle);

static void membridge_ramulator_trampoline(membridge_ramulator_request* req,
	void* ctx) {
	membridgeRamulatorDone(req, (uintptr_t)ctx);
}

static bool membridge_ramulator_send(void* obj, int64_t addr, bool is_write,
	uintptr_t handle) {
	return send_request(obj, addr, is_write,
		membridge_ramulator_trampoline, (void*)handle);
}
*/
import "C"

import (
	"fmt"
	"log"
	"os"
	"runtime/cgo"
	"unsafe"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/mem"
)

func init() {
	bridge.RegisterEngine(config.EngineRamulator, NewEngine)
}

// pending is what a cgo handle refers to while Ramulator holds a request.
type pending struct {
	req *mem.Request
	w   *wrapper
}

// wrapper owns the native Ramulator object shared by the two halves. It is
// deleted when both halves are released.
type wrapper struct {
	obj      unsafe.Pointer
	refs     int
	inflight map[cgo.Handle]struct{}
}

func (w *wrapper) release() {
	w.refs--
	if w.refs > 0 {
		return
	}

	C.dram_delete(w.obj)
	w.obj = nil

	for h := range w.inflight {
		h.Delete()
	}
	w.inflight = nil
}

// NewEngine creates a Ramulator2 instance from the configuration file the
// configuration was loaded from.
func NewEngine(cfg *config.Config) (bridge.Frontend, bridge.MemorySystem, error) {
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf(
			"%w: engine %s reads its configuration from a file",
			config.ErrInvalid, config.EngineRamulator)
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, nil, fmt.Errorf("ramulator: %w", err)
	}

	path := C.CString(cfg.Path)
	defer C.free(unsafe.Pointer(path))

	w := &wrapper{
		obj:      C.dram_new(),
		refs:     2,
		inflight: make(map[cgo.Handle]struct{}),
	}
	C.dram_init(w.obj, path)

	return &Frontend{w: w}, &MemorySystem{w: w}, nil
}

// Frontend is the Ramulator2 frontend.
type Frontend struct {
	w     *wrapper
	ms    bridge.MemorySystem
	cycle int64
}

// ConnectMemorySystem records the memory system. Ramulator connects its own
// halves during initialization.
func (f *Frontend) ConnectMemorySystem(ms bridge.MemorySystem) {
	f.ms = ms
}

// ReceiveExternalRequest hands the request to Ramulator.
func (f *Frontend) ReceiveExternalRequest(req *mem.Request) bool {
	h := cgo.NewHandle(&pending{req: req, w: f.w})

	ok := C.membridge_ramulator_send(f.w.obj,
		C.int64_t(req.Addr), C.bool(req.IsWrite()), C.uintptr_t(h))
	if !ok {
		h.Delete()
		return false
	}

	req.Arrive = f.cycle
	f.w.inflight[h] = struct{}{}

	return true
}

// Tick ticks the Ramulator frontend.
func (f *Frontend) Tick() {
	C.frontend_tick(f.w.obj)
	f.cycle++
}

// Finalize lets Ramulator finish and print its statistics.
func (f *Frontend) Finalize() {
	C.finish(f.w.obj)
}

// Release drops the frontend's reference to the native object.
func (f *Frontend) Release() {
	f.w.release()
}

// MemorySystem is the Ramulator2 memory system.
type MemorySystem struct {
	w  *wrapper
	fe bridge.Frontend
}

// ConnectFrontend records the frontend.
func (m *MemorySystem) ConnectFrontend(fe bridge.Frontend) {
	m.fe = fe
}

// Send is never used. Ramulator moves requests from its frontend to its
// memory system internally.
func (m *MemorySystem) Send(req *mem.Request) bool {
	log.Panicf("ramulator: request %s sent around the frontend", req.ID)
	return false
}

// Tick ticks the Ramulator memory system.
func (m *MemorySystem) Tick() {
	C.memory_system_tick(m.w.obj)
}

// TCK returns the DRAM clock period in nanoseconds.
func (m *MemorySystem) TCK() float64 {
	return float64(C.get_memory_tCK(m.w.obj))
}

// Finalize does nothing. The frontend finishes the shared native object.
func (m *MemorySystem) Finalize() {}

// Release drops the memory system's reference to the native object.
func (m *MemorySystem) Release() {
	m.w.release()
}
