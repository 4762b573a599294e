package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/mem"
	_ "github.com/sarchlab/membridge/mem/dram"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
)

type sampleComponent struct {
	name   string
	buffer sim.Buffer
}

func (c *sampleComponent) Name() string {
	return c.name
}

type fixedClock uint64

func (c fixedClock) CurrentCycle() uint64 {
	return uint64(c)
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
		b *bridge.Bridge
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	BeforeEach(func() {
		m = NewMonitor()
		b = bridge.New("Bridge")
		Expect(b.Initialize(config.Value{
			Frontend: config.FrontendConfig{QueueSize: 4},
		})).To(Succeed())
	})

	AfterEach(func() {
		_, _ = b.Finalize()
		_ = b.Destroy()
	})

	It("should register a bridge with its engine and buffers", func() {
		m.RegisterBridge(b)

		var names []string
		decode(get("/api/list_components"), &names)

		Expect(names).To(Equal([]string{
			"Bridge", "DRAM.Frontend", "DRAM.MemCtrl",
		}))
		Expect(len(m.buffers)).To(BeNumerically(">=", 2))
		Expect(m.buffers[0].Name()).To(Equal("DRAM.Frontend.AdmissionQueue"))
	})

	It("should find buffers in the fields of other components", func() {
		c := &sampleComponent{
			name:   "Comp",
			buffer: sim.NewBuffer("Comp.Buf", 10),
		}

		m.RegisterComponent(c)

		Expect(m.buffers).To(HaveLen(1))
		Expect(m.buffers[0].Name()).To(Equal("Comp.Buf"))
	})

	It("should tell the current cycle", func() {
		m.RegisterClock(fixedClock(42))

		rsp := nowRsp{}
		decode(get("/api/now"), &rsp)

		Expect(rsp.Cycle).To(Equal(uint64(42)))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should report bridge statistics", func() {
		m.RegisterBridge(b)

		ok, err := b.SendRequest(0x40, false,
			bridge.NewCompletion(func(mem.Request) {}))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(b.Tick()).To(Succeed())

		var rsp []bridgeStatsRsp
		decode(get("/api/stats"), &rsp)

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("Bridge"))
		Expect(rsp[0].Cycle).To(Equal(uint64(1)))
		Expect(rsp[0].Admitted).To(Equal(uint64(1)))
		Expect(rsp[0].Outstanding).To(Equal(uint64(1)))
		Expect(rsp[0].Engine).To(HaveKey("dram.cycles"))
	})

	Context("buffers", func() {
		BeforeEach(func() {
			small := sim.NewBuffer("Small", 2)
			small.Push(1)

			large := sim.NewBuffer("Large", 10)
			large.Push(1)
			large.Push(2)

			empty := sim.NewBuffer("Empty", 4)

			m.buffers = []sim.Buffer{empty, large, small}
		})

		It("should sort by percent", func() {
			var rsp []bufferRsp
			decode(get("/api/hangdetector/buffers"), &rsp)

			Expect(rsp).To(HaveLen(3))
			Expect(rsp[0].Buffer).To(Equal("Small"))
			Expect(rsp[1].Buffer).To(Equal("Large"))
			Expect(rsp[2].Buffer).To(Equal("Empty"))
		})

		It("should sort by level with a limit and an offset", func() {
			var rsp []bufferRsp
			decode(get("/api/hangdetector/buffers?sort=level&limit=1&offset=1"),
				&rsp)

			Expect(rsp).To(Equal([]bufferRsp{{Buffer: "Small", Level: 1, Cap: 2}}))
		})

		It("should reject unknown sort methods", func() {
			rec := get("/api/hangdetector/buffers?sort=name")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject bad limits", func() {
			rec := get("/api/hangdetector/buffers?limit=-1")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("should answer 404 for unknown components", func() {
		rec := get("/api/component/Nothing")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should block the simulation while paused", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))

		rsp := nowRsp{}
		decode(get("/api/now"), &rsp)
		Expect(rsp.Paused).To(BeTrue())

		stepped := make(chan struct{})
		go func() {
			m.Lock()
			m.Unlock()
			close(stepped)
		}()

		Consistently(stepped).ShouldNot(BeClosed())

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))

		Eventually(stepped).Should(BeClosed())
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("Run", 100)
		bar.Func(hooking.HookCtx{Item: uint64(30)})

		var bars []ProgressBarSnapshot
		decode(get("/api/progress"), &bars)

		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Run"))
		Expect(bars[0].Total).To(Equal(uint64(100)))
		Expect(bars[0].Finished).To(Equal(uint64(30)))

		m.CompleteProgressBar(bar)

		decode(get("/api/progress"), &bars)
		Expect(bars).To(BeEmpty())
	})
})
