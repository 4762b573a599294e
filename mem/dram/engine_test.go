package dram

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
)

var _ = Describe("NewEngine", func() {
	It("should be registered as the reference engine", func() {
		Expect(bridge.Engines()).To(ContainElement(config.EngineReference))
	})

	It("should build both halves from the default configuration", func() {
		fe, ms, err := NewEngine(config.Default())

		Expect(err).ToNot(HaveOccurred())
		Expect(fe).To(BeAssignableToTypeOf(&Frontend{}))
		Expect(ms.TCK()).To(Equal(0.833))
		Expect(fe.(*Frontend).Buffers()[0].Capacity()).To(Equal(32))
	})

	It("should follow the configured queue sizes and channels", func() {
		cfg := config.Default()
		cfg.Frontend.QueueSize = 4
		cfg.MemorySystem.Controller.QueueSize = 8
		cfg.MemorySystem.DRAM.Org.Channel = 2

		fe, ms, err := NewEngine(cfg)

		Expect(err).ToNot(HaveOccurred())
		Expect(fe.(*Frontend).Buffers()[0].Capacity()).To(Equal(4))
		Expect(ms.(*MemController).Buffers()).To(HaveLen(2))
		Expect(ms.(*MemController).Buffers()[1].Capacity()).To(Equal(8))
	})

	It("should refuse other engines", func() {
		cfg := config.Default()
		cfg.Engine = config.EngineRamulator

		_, _, err := NewEngine(cfg)

		Expect(err).To(MatchError(config.ErrInvalid))
	})

	It("should refuse an unknown scheduler", func() {
		cfg := config.Default()
		cfg.MemorySystem.Controller.Scheduler.Impl = "BLISS"

		_, _, err := NewEngine(cfg)

		Expect(err).To(MatchError(config.ErrInvalid))
	})
})
