package config

import (
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("should load the example yaml config", func() {
		cfg, err := Load("testdata/example_config.yaml")

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Path).To(gomega.Equal("testdata/example_config.yaml"))
		gomega.Expect(cfg.Frontend.QueueSize).To(gomega.Equal(4))
		gomega.Expect(cfg.MemorySystem.DRAM.Org.Rank).To(gomega.Equal(2))
		gomega.Expect(cfg.MemorySystem.DRAM.Org.Bank).To(gomega.Equal(4))
		gomega.Expect(cfg.MemorySystem.DRAM.Timing.TCK).To(gomega.BeNumerically("~", 0.833, 1e-9))
		gomega.Expect(cfg.MemorySystem.DRAM.Timing.NCL).To(gomega.Equal(16))
	})

	It("should read toml and yaml into the same configuration", func() {
		fromYAML, err := Load("testdata/example_config.yaml")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		fromTOML, err := Load("testdata/example_config.toml")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		diff := cmp.Diff(fromYAML, fromTOML,
			cmpopts.IgnoreFields(Config{}, "Path"))
		gomega.Expect(diff).To(gomega.BeEmpty())
	})

	It("should complete an empty document with defaults", func() {
		cfg, err := Parse(nil, YAML)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg).To(gomega.Equal(Default()))
		gomega.Expect(cfg.Frontend.Impl).To(gomega.Equal("External"))
		gomega.Expect(cfg.MemorySystem.Controller.Scheduler.Impl).To(gomega.Equal(SchedulerFRFCFS))
		gomega.Expect(cfg.MemorySystem.DRAM.Impl).To(gomega.Equal("DDR4"))
	})

	It("should let explicit values override presets", func() {
		doc := []byte(`
MemorySystem:
  DRAM:
    timing:
      preset: DDR3_1600K
      nCL: 9
`)
		cfg, err := Parse(doc, YAML)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.MemorySystem.DRAM.Impl).To(gomega.Equal("DDR3"))
		gomega.Expect(cfg.MemorySystem.DRAM.Timing.NCL).To(gomega.Equal(9))
		gomega.Expect(cfg.MemorySystem.DRAM.Timing.NRCD).To(gomega.Equal(11))
	})

	It("should reject malformed documents", func() {
		_, err := Load("testdata/malformed.yaml")

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("malformed.yaml"))
	})

	It("should reject unknown keys", func() {
		_, err := Load("testdata/unknown_key.yaml")
		gomega.Expect(err).To(gomega.HaveOccurred())

		_, err = Parse([]byte("[Frontend]\nqueue_sise = 1\n"), TOML)
		gomega.Expect(err).To(gomega.MatchError(ErrInvalid))
	})

	It("should reject missing files", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "absent.yaml"))

		gomega.Expect(err).To(gomega.MatchError(os.ErrNotExist))
	})

	It("should reject unknown extensions", func() {
		_, err := Load("testdata/example_config.json")

		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	DescribeTable("invalid values",
		func(doc string) {
			_, err := Parse([]byte(doc), YAML)
			gomega.Expect(err).To(gomega.MatchError(ErrInvalid))
		},
		Entry("negative queue", "Frontend:\n  queue_size: -1\n"),
		Entry("non power of two bank", "MemorySystem:\n  DRAM:\n    org:\n      bank: 3\n"),
		Entry("unknown org preset", "MemorySystem:\n  DRAM:\n    org:\n      preset: HBM9\n"),
		Entry("unknown timing preset", "MemorySystem:\n  DRAM:\n    timing:\n      preset: X_1\n"),
		Entry("negative tCK", "MemorySystem:\n  DRAM:\n    timing:\n      tCK: -1\n"),
		Entry("unknown scheduler", "MemorySystem:\n  Controller:\n    Scheduler:\n      impl: LIFO\n"),
		Entry("unknown mapper", "MemorySystem:\n  AddrMapper:\n    impl: Random\n"),
	)

	It("should load through sources", func() {
		cfg, err := File("testdata/example_config.yaml").Load()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Frontend.QueueSize).To(gomega.Equal(4))

		cfg, err = Document{Data: []byte("Frontend:\n  queue_size: 2\n")}.Load()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Frontend.QueueSize).To(gomega.Equal(2))

		cfg, err = Value{Frontend: FrontendConfig{QueueSize: 3}}.Load()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Frontend.QueueSize).To(gomega.Equal(3))
		gomega.Expect(cfg.MemorySystem.DRAM.Org.Column).To(gomega.Equal(1024))
	})
})

var _ = Describe("Config for external engines", func() {
	It("should accept keys the reference engine does not know", func() {
		doc := []byte(`
Engine: Ramulator2
Frontend:
  impl: GEM5
  clock_ratio: 8
MemorySystem:
  impl: GenericDRAM
  DRAM:
    impl: LPDDR5
    org:
      preset: LPDDR5_16Gb_x16
  Controller:
    RefreshManager:
      impl: AllBank
`)
		cfg, err := Parse(doc, YAML)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Engine).To(gomega.Equal(EngineRamulator))
		gomega.Expect(cfg.Frontend.QueueSize).To(gomega.BeZero())
	})
})
