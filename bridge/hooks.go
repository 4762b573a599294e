package bridge

import (
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim/hooking"
)

// Hook positions specific to the Bridge. Admissions and completions are also
// reported as hooking.HookPosTaskStart and hooking.HookPosTaskEnd, with the
// request as the Detail.
var (
	HookPosReqReject = &hooking.HookPos{Name: "BridgeReqReject"}
	HookPosFinalize  = &hooking.HookPos{Name: "BridgeFinalize"}
)

// TaskKindReqIn is the kind of the tasks that the Bridge reports.
const TaskKindReqIn = "req_in"

func (b *Bridge) traceAdmit(req *mem.Request) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    hooking.HookPosTaskStart,
		Item: hooking.TaskStart{
			ID:    req.ID,
			Kind:  TaskKindReqIn,
			What:  req.Kind.String(),
			Where: b.name,
		},
		Detail: *req,
	})
}

func (b *Bridge) traceReject(req *mem.Request) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosReqReject,
		Item:   *req,
	})
}

func (b *Bridge) traceComplete(req mem.Request) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    hooking.HookPosTaskEnd,
		Item:   hooking.TaskEnd{ID: req.ID},
		Detail: req,
	})
}

func (b *Bridge) traceFinalize(report FinalizeReport) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosFinalize,
		Item:   report,
	})
}
