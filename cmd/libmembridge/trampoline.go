//go:build cgo

package main

/*
#include "membridge.h"

static void membridge_invoke(membridge_callback cb,
	membridge_request_state* state, void* ctx) {
	cb(state, ctx);
}

static void membridge_invoke_dispose(membridge_dispose_callback cb,
	void* ctx) {
	cb(ctx);
}
*/
import "C"

import (
	"unsafe"

	"github.com/sarchlab/membridge/bridge/native"
)

// pairFor wraps a caller's function pointer and context. The context stays
// owned by the caller; the pair never dereferences it.
func pairFor(cb C.membridge_callback, ctx unsafe.Pointer) *native.Pair {
	return native.NewPair(func(s *native.RequestState, _ native.Context) {
		state := C.membridge_request_state{
			addr:     C.int64_t(s.Addr),
			arrive:   C.int64_t(s.Arrive),
			depart:   C.int64_t(s.Depart),
			is_write: C.bool(s.IsWrite),
		}

		C.membridge_invoke(cb, &state, ctx)
	}, native.Context(uintptr(ctx)))
}

// disposerFor calls the caller's dispose function with the context of a
// request the bridge dropped.
func disposerFor(
	cb C.membridge_dispose_callback,
	ctx unsafe.Pointer,
) func(native.Context) {
	return func(native.Context) {
		C.membridge_invoke_dispose(cb, ctx)
	}
}
