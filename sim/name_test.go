package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Name", func() {
	DescribeTable("valid names",
		func(name string) {
			Expect(func() { NameMustBeValid(name) }).NotTo(Panic())
		},
		Entry("single element", "Bridge"),
		Entry("hierarchy", "Bridge.Frontend.Queue"),
		Entry("indexed", "Driver.Port[3]"),
		Entry("multi-indexed", "Mem.Bank[0][7]"),
	)

	DescribeTable("invalid names",
		func(name string) {
			Expect(func() { NameMustBeValid(name) }).To(Panic())
		},
		Entry("empty element", "Bridge..Queue"),
		Entry("trailing dot", "Bridge."),
		Entry("lower case", "Bridge.queue"),
		Entry("underscore", "Bridge.Admit_Queue"),
		Entry("unclosed bracket", "Port[3"),
		Entry("non numeric index", "Port[a]"),
	)

	It("should build names", func() {
		Expect(BuildName("", "Bridge")).To(Equal("Bridge"))
		Expect(BuildName("Driver", "Bridge")).To(Equal("Driver.Bridge"))
		Expect(BuildNameWithIndex("Driver", "Port", 2)).To(Equal("Driver.Port[2]"))
	})
})
