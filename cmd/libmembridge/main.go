//go:build cgo

// Command libmembridge builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libmembridge.so ./cmd/libmembridge
//
// Bridges are referred to by opaque handles. A handle must only be used from
// one thread at a time.
package main

/*
#include <stdlib.h>
#include "membridge.h"
*/
import "C"

import (
	"runtime/cgo"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
	_ "github.com/sarchlab/membridge/mem/dram"
	"github.com/sarchlab/membridge/sim"
)

var numBridges atomic.Int64

// handle is what a C handle refers to.
type handle struct {
	bridge  *bridge.Bridge
	dispose C.membridge_dispose_callback
}

func handleOf(h C.uintptr_t) *handle {
	return cgo.Handle(h).Value().(*handle)
}

func bridgeOf(h C.uintptr_t) *bridge.Bridge {
	return handleOf(h).bridge
}

func status(op string, err error) C.int {
	if err != nil {
		logrus.WithError(err).WithField("op", op).Error("membridge")
		return -1
	}

	return 0
}

//export membridge_new
func membridge_new() C.uintptr_t {
	n := int(numBridges.Add(1) - 1)
	b := bridge.New(sim.BuildNameWithIndex("", "Bridge", n))

	return C.uintptr_t(cgo.NewHandle(&handle{bridge: b}))
}

// membridge_delete finalizes the bridge if needed and releases it. The
// contexts of requests still in flight are passed to the dispose callback,
// if one is set.
//
//export membridge_delete
func membridge_delete(h C.uintptr_t) {
	b := bridgeOf(h)

	if err := b.Destroy(); err != nil {
		_, _ = b.Finalize()
		_ = b.Destroy()
	}

	cgo.Handle(h).Delete()
}

// membridge_set_dispose sets the function that receives the context of
// every admitted request that is dropped without completion.
//
//export membridge_set_dispose
func membridge_set_dispose(h C.uintptr_t, dispose C.membridge_dispose_callback) {
	handleOf(h).dispose = dispose
}

//export membridge_init
func membridge_init(h C.uintptr_t, configPath *C.char) C.int {
	path := C.GoString(configPath)
	return status("init", bridgeOf(h).Initialize(config.File(path)))
}

//export membridge_get_tck
func membridge_get_tck(h C.uintptr_t) C.float {
	tck, err := bridgeOf(h).TCK()
	if status("get_tck", err) != 0 {
		return 0
	}

	return C.float(tck)
}

//export membridge_send_request
func membridge_send_request(
	h C.uintptr_t,
	addr C.int64_t,
	isWrite C.bool,
	cb C.membridge_callback,
	ctx unsafe.Pointer,
) C.bool {
	if cb == nil {
		status("send_request", bridge.ErrBoundaryContractViolation)
		return false
	}

	hd := handleOf(h)
	pair := pairFor(cb, ctx)

	ok, err := hd.bridge.SendRequest(int64(addr), bool(isWrite), pair)
	if status("send_request", err) != 0 {
		return false
	}

	if ok && hd.dispose != nil {
		pair.OnDispose = disposerFor(hd.dispose, ctx)
	}

	return C.bool(ok)
}

//export membridge_tick
func membridge_tick(h C.uintptr_t) C.int {
	return status("tick", bridgeOf(h).Tick())
}

//export membridge_finish
func membridge_finish(h C.uintptr_t) C.int {
	_, err := bridgeOf(h).Finalize()
	return status("finish", err)
}

func main() {}
