package dram

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim/hooking"
)

var _ = Describe("MemController", func() {
	var (
		ctrl     *MemController
		departed []*mem.Request
	)

	// One channel with two banks of 16 rows. With 64 byte access units the
	// bank is address bit 8 and the row starts at bit 9.
	const (
		bankStride = 0x100
		rowStride  = 0x200
	)

	newReq := func(addr int64, kind mem.AccessKind) *mem.Request {
		return mem.RequestBuilder{}.
			WithAddress(addr).
			WithKind(kind).
			WithOnDepart(func(r *mem.Request) {
				departed = append(departed, r)
			}).
			Build()
	}

	tickUntil := func(cycle int64) {
		for int64(ctrl.CurrentCycle()) <= cycle {
			ctrl.Tick()
		}
	}

	BeforeEach(func() {
		departed = nil

		s, err := MakeBuilder().
			WithTransactionQueueSize(2).
			WithNumBankGroup(1).
			WithNumBank(2).
			WithNumRow(16).
			WithNumCol(32).
			Build("DRAM")
		Expect(err).ToNot(HaveOccurred())

		ctrl = s.Controller
	})

	It("should complete a request to a closed bank", func() {
		Expect(ctrl.Send(newReq(0, mem.Read))).To(BeTrue())

		tickUntil(35)
		Expect(departed).To(BeEmpty())

		tickUntil(36)
		Expect(departed).To(HaveLen(1))
		Expect(departed[0].Depart).To(Equal(int64(36)))
	})

	It("should serve a row hit after the bank becomes ready", func() {
		ctrl.Send(newReq(0, mem.Read))
		ctrl.Send(newReq(0x40, mem.Read))

		tickUntil(56)

		Expect(departed).To(HaveLen(2))
		Expect(departed[1].Depart).To(Equal(int64(56)))
		Expect(ctrl.Stats()).To(HaveKeyWithValue("dram.row_hits", 1.0))
		Expect(ctrl.Stats()).To(HaveKeyWithValue("dram.row_misses", 1.0))
	})

	It("should charge a precharge on a row conflict", func() {
		ctrl.Send(newReq(0, mem.Read))
		ctrl.Send(newReq(rowStride, mem.Read))

		tickUntil(88)

		Expect(departed).To(HaveLen(2))
		Expect(departed[1].Depart).To(Equal(int64(36 + 52)))
		Expect(ctrl.Stats()).To(HaveKeyWithValue("dram.row_conflicts", 1.0))
	})

	It("should hold a write's bank for the recovery time", func() {
		ctrl.Send(newReq(0, mem.Write))
		ctrl.Send(newReq(0x40, mem.Read))

		tickUntil(74)

		Expect(departed).To(HaveLen(2))
		Expect(departed[0].Depart).To(Equal(int64(36)))
		Expect(departed[1].Depart).To(Equal(int64(54 + 20)))
	})

	It("should issue to another bank in the next cycle", func() {
		ctrl.Send(newReq(0, mem.Read))
		ctrl.Send(newReq(bankStride, mem.Read))

		tickUntil(37)

		Expect(departed).To(HaveLen(2))
		Expect(departed[0].Depart).To(Equal(int64(36)))
		Expect(departed[1].Depart).To(Equal(int64(37)))
	})

	It("should reject requests when the queue is full", func() {
		Expect(ctrl.Send(newReq(0, mem.Read))).To(BeTrue())
		Expect(ctrl.Send(newReq(0, mem.Read))).To(BeTrue())
		Expect(ctrl.Send(newReq(0, mem.Read))).To(BeFalse())

		ctrl.Tick()

		Expect(ctrl.Send(newReq(0, mem.Read))).To(BeTrue())
	})

	It("should invoke hooks on transaction start and end", func() {
		var poses []*hooking.HookPos
		ctrl.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			poses = append(poses, ctx.Pos)
		}))

		ctrl.Send(newReq(0, mem.Read))
		tickUntil(36)

		Expect(poses).To(Equal([]*hooking.HookPos{
			hooking.HookPosTaskStart,
			hooking.HookPosTaskEnd,
		}))
	})

	It("should refuse requests after finalization", func() {
		ctrl.Finalize()

		Expect(func() { ctrl.Send(newReq(0, mem.Read)) }).To(Panic())
	})
})
