package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IDGenerator", func() {
	It("should generate increasing sequential ids", func() {
		g := &sequentialIDGenerator{}

		Expect(g.Generate()).To(Equal("1"))
		Expect(g.Generate()).To(Equal("2"))
	})

	It("should generate unique parallel ids", func() {
		g := parallelIDGenerator{}

		Expect(g.Generate()).NotTo(Equal(g.Generate()))
	})

	It("should refuse to switch generator after first use", func() {
		GetIDGenerator().Generate()

		Expect(UseParallelIDGenerator).To(Panic())
	})
})
