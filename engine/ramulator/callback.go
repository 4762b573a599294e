//go:build ramulator && cgo

package ramulator

/*
#include "membridge_ramulator.h"
*/
import "C"

import (
	"runtime/cgo"
)

//export membridgeRamulatorDone
func membridgeRamulatorDone(req *C.membridge_ramulator_request, handle C.uintptr_t) {
	h := cgo.Handle(handle)
	p := h.Value().(*pending)

	delete(p.w.inflight, h)
	h.Delete()

	latency := int64(req.depart) - int64(req.arrive)
	p.req.Complete(p.req.Arrive + latency)
}
