package datarecording

import (
	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim/hooking"
)

// Table names used by the RequestRecorder.
const (
	RequestTable  = "requests"
	RejectTable   = "rejections"
	FinalizeTable = "finalize"
)

// RequestEntry is one completed request.
type RequestEntry struct {
	ID      string
	Bridge  string
	Kind    string
	Addr    int64
	Arrive  int64
	Depart  int64
	Latency int64
}

// RejectEntry is one request that a frontend did not admit.
type RejectEntry struct {
	ID     string
	Bridge string
	Kind   string
	Addr   int64
	Cycle  uint64
}

// FinalizeEntry summarizes a bridge when it is finalized.
type FinalizeEntry struct {
	Bridge      string
	Cycle       uint64
	Admitted    uint64
	Rejected    uint64
	Completed   uint64
	Outstanding uint64
}

// RequestRecorder is a hook that records the requests of bridges.
type RequestRecorder struct {
	recorder DataRecorder
}

// NewRequestRecorder creates the tables of the recorder and returns a hook
// that can be attached to any number of bridges.
func NewRequestRecorder(recorder DataRecorder) *RequestRecorder {
	recorder.CreateTable(RequestTable, RequestEntry{})
	recorder.CreateTable(RejectTable, RejectEntry{})
	recorder.CreateTable(FinalizeTable, FinalizeEntry{})

	return &RequestRecorder{recorder: recorder}
}

// Func records completions, rejections, and finalization.
func (r *RequestRecorder) Func(ctx hooking.HookCtx) {
	b, ok := ctx.Domain.(*bridge.Bridge)
	if !ok {
		return
	}

	switch ctx.Pos {
	case hooking.HookPosTaskEnd:
		req := ctx.Detail.(mem.Request)
		r.recorder.InsertData(RequestTable, RequestEntry{
			ID:      req.ID,
			Bridge:  b.Name(),
			Kind:    req.Kind.String(),
			Addr:    req.Addr,
			Arrive:  req.Arrive,
			Depart:  req.Depart,
			Latency: req.Latency(),
		})
	case bridge.HookPosReqReject:
		req := ctx.Item.(mem.Request)
		r.recorder.InsertData(RejectTable, RejectEntry{
			ID:     req.ID,
			Bridge: b.Name(),
			Kind:   req.Kind.String(),
			Addr:   req.Addr,
			Cycle:  b.CurrentCycle(),
		})
	case bridge.HookPosFinalize:
		report := ctx.Item.(bridge.FinalizeReport)
		r.recorder.InsertData(FinalizeTable, FinalizeEntry{
			Bridge:      b.Name(),
			Cycle:       report.Cycle,
			Admitted:    report.Stats.Admitted,
			Rejected:    report.Stats.Rejected,
			Completed:   report.Stats.Completed,
			Outstanding: report.Stats.Outstanding,
		})
		r.recorder.Flush()
	}
}
