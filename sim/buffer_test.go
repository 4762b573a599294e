package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/sim/hooking"
)

var _ = Describe("BufferImpl", func() {

	var (
		buf Buffer
	)

	BeforeEach(func() {
		buf = NewBuffer("Buf", 2)
	})

	It("should allow push and pop", func() {
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(1)
		Expect(buf.CanPush()).To(BeTrue())
		Expect(buf.Size()).To(Equal(1))

		buf.Push(2)
		Expect(buf.CanPush()).To(BeFalse())
		Expect(buf.Size()).To(Equal(2))
		Expect(func() {
			buf.Push(3)
		}).To(Panic())

		Expect(buf.Peek()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(1))
		Expect(buf.Size()).To(Equal(1))
		Expect(buf.Peek()).To(Equal(2))
		Expect(buf.Pop()).To(Equal(2))
		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
		Expect(buf.Pop()).To(BeNil())
	})

	It("should remove from the middle", func() {
		buf = NewBuffer("Buf", 3)
		buf.Push(1)
		buf.Push(2)
		buf.Push(3)

		Expect(buf.Remove(1)).To(Equal(2))
		Expect(buf.Get(0)).To(Equal(1))
		Expect(buf.Get(1)).To(Equal(3))
		Expect(func() { buf.Remove(5) }).To(Panic())
	})

	It("should report push and pop to hooks", func() {
		var poses []*hooking.HookPos
		buf.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			poses = append(poses, ctx.Pos)
		}))

		buf.Push(1)
		buf.Pop()

		Expect(poses).To(Equal([]*hooking.HookPos{HookPosBufPush, HookPosBufPop}))
	})

	It("should clear", func() {
		buf.Push(2)
		Expect(buf.Size()).To(Equal(1))

		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
	})

	It("should reject invalid names and capacities", func() {
		Expect(func() { NewBuffer("buf", 1) }).To(Panic())
		Expect(func() { NewBuffer("Buf", 0) }).To(Panic())
	})
})
