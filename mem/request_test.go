package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Request", func() {
	var req *Request

	BeforeEach(func() {
		req = RequestBuilder{}.
			WithAddress(0x40).
			WithKind(Write).
			WithArrive(10).
			Build()
	})

	It("should start without a departure cycle", func() {
		Expect(req.ID).NotTo(BeEmpty())
		Expect(req.IsWrite()).To(BeTrue())
		Expect(req.IsCompleted()).To(BeFalse())
		Expect(func() { req.Latency() }).To(Panic())
	})

	It("should record departure", func() {
		req.MarkDeparted(25)

		Expect(req.IsCompleted()).To(BeTrue())
		Expect(req.Latency()).To(Equal(int64(15)))
	})

	It("should notify on completion", func() {
		var seen *Request
		req.OnDepart = func(r *Request) { seen = r }

		req.Complete(30)

		Expect(seen).To(BeIdenticalTo(req))
		Expect(seen.Depart).To(Equal(int64(30)))
	})

	It("should allow departing in the arrival cycle", func() {
		req.MarkDeparted(10)

		Expect(req.Latency()).To(BeZero())
	})

	It("should refuse to depart before arriving", func() {
		Expect(func() { req.MarkDeparted(9) }).To(Panic())
	})

	It("should refuse to depart twice", func() {
		req.MarkDeparted(12)

		Expect(func() { req.MarkDeparted(13) }).To(Panic())
	})

	It("should name the access kinds", func() {
		Expect(KindOf(false)).To(Equal(Read))
		Expect(KindOf(true).String()).To(Equal("write"))
		Expect(AccessKind(7).String()).To(Equal("AccessKind(7)"))
	})
})
