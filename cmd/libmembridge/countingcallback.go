//go:build cgo

package main

/*
#include <stdlib.h>
#include "membridge.h"

typedef struct membridge_counter {
	int calls;
	int disposed;
	int64_t addr;
	void* self;
} membridge_counter;

static void membridge_count_call(membridge_request_state* state, void* ctx) {
	membridge_counter* c = ctx;
	c->calls++;
	c->addr = state->addr;
	c->self = ctx;
}

static void membridge_count_dispose(void* ctx) {
	membridge_counter* c = ctx;
	c->disposed++;
}

static membridge_callback membridge_counting_callback(void) {
	return membridge_count_call;
}

static membridge_dispose_callback membridge_counting_dispose(void) {
	return membridge_count_dispose;
}
*/
import "C"

import "unsafe"

// The functions below drive the C entry points with a C callback that
// counts its calls in the context it receives. Test files cannot use cgo,
// so they go through these.

type counter struct {
	ptr *C.membridge_counter
}

type counterState struct {
	Calls    int
	Disposed int
	Addr     int64
	Self     unsafe.Pointer
}

func newCounter() counter {
	p := C.calloc(1, C.size_t(unsafe.Sizeof(C.membridge_counter{})))
	return counter{ptr: (*C.membridge_counter)(p)}
}

func (c counter) ctx() unsafe.Pointer {
	return unsafe.Pointer(c.ptr)
}

func (c counter) state() counterState {
	return counterState{
		Calls:    int(c.ptr.calls),
		Disposed: int(c.ptr.disposed),
		Addr:     int64(c.ptr.addr),
		Self:     c.ptr.self,
	}
}

func (c counter) free() {
	C.free(unsafe.Pointer(c.ptr))
}

func cNew() uintptr {
	return uintptr(membridge_new())
}

func cDelete(h uintptr) {
	membridge_delete(C.uintptr_t(h))
}

func cInit(h uintptr, path string) int {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	return int(membridge_init(C.uintptr_t(h), cPath))
}

func cTick(h uintptr) int {
	return int(membridge_tick(C.uintptr_t(h)))
}

func cFinish(h uintptr) int {
	return int(membridge_finish(C.uintptr_t(h)))
}

func cSetCountingDispose(h uintptr) {
	membridge_set_dispose(C.uintptr_t(h), C.membridge_counting_dispose())
}

func cSendCounted(h uintptr, addr int64, isWrite bool, c counter) bool {
	return bool(membridge_send_request(C.uintptr_t(h), C.int64_t(addr),
		C.bool(isWrite), C.membridge_counting_callback(), c.ctx()))
}

func cSendNil(h uintptr, addr int64, c counter) bool {
	return bool(membridge_send_request(C.uintptr_t(h), C.int64_t(addr),
		C.bool(false), nil, c.ctx()))
}
