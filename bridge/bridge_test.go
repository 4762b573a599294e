package bridge

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim/hooking"
)

type releasingFrontend struct {
	*MockFrontend
	released *[]string
}

func (f releasingFrontend) Release() {
	*f.released = append(*f.released, "frontend")
}

type releasingMemorySystem struct {
	*MockMemorySystem
	released *[]string
}

func (m releasingMemorySystem) Release() {
	*m.released = append(*m.released, "memory system")
}

func (m releasingMemorySystem) Stats() map[string]float64 {
	return map[string]float64{"reads": 3}
}

var _ = Describe("Bridge", func() {
	var (
		mockCtrl *gomock.Controller
		fe       *MockFrontend
		ms       *MockMemorySystem
		released []string
		b        *Bridge
		admitted []*mem.Request
	)

	admitAt := func(cycle int64) {
		fe.EXPECT().ReceiveExternalRequest(gomock.Any()).
			DoAndReturn(func(req *mem.Request) bool {
				req.Arrive = cycle
				admitted = append(admitted, req)
				return true
			})
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		fe = NewMockFrontend(mockCtrl)
		ms = NewMockMemorySystem(mockCtrl)
		released = nil
		admitted = nil

		b = MakeBuilder().
			WithEngine(func(*config.Config) (Frontend, MemorySystem, error) {
				return releasingFrontend{fe, &released},
					releasingMemorySystem{ms, &released},
					nil
			}).
			Build("Bridge")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	initialize := func() {
		fe.EXPECT().ConnectMemorySystem(gomock.Any())
		ms.EXPECT().ConnectFrontend(gomock.Any())

		Expect(b.Initialize(config.Value{})).To(Succeed())
	}

	Context("before initialization", func() {
		It("should reject tick", func() {
			Expect(b.Tick()).To(MatchError(ErrLifecycleViolation))
		})

		It("should reject send request", func() {
			c := &spyCompletion{}

			ok, err := b.SendRequest(0x40, false, c)

			Expect(ok).To(BeFalse())
			Expect(err).To(MatchError(ErrLifecycleViolation))
			Expect(c.disposed).To(Equal(0))
		})

		It("should reject TCK", func() {
			_, err := b.TCK()

			Expect(err).To(MatchError(ErrLifecycleViolation))
		})

		It("should reject finalize", func() {
			_, err := b.Finalize()

			Expect(err).To(MatchError(ErrLifecycleViolation))
		})

		It("should allow destroy", func() {
			Expect(b.Destroy()).To(Succeed())
			Expect(released).To(BeEmpty())
		})
	})

	Context("initialization", func() {
		It("should connect the two halves to each other", func() {
			fe.EXPECT().ConnectMemorySystem(gomock.Any()).
				Do(func(got MemorySystem) {
					Expect(got.(releasingMemorySystem).MockMemorySystem).
						To(BeIdenticalTo(ms))
				})
			ms.EXPECT().ConnectFrontend(gomock.Any()).
				Do(func(got Frontend) {
					Expect(got.(releasingFrontend).MockFrontend).
						To(BeIdenticalTo(fe))
				})

			Expect(b.Initialize(config.Value{})).To(Succeed())
			Expect(b.Config().Engine).To(Equal(config.EngineReference))
		})

		It("should reject a second initialization", func() {
			initialize()

			err := b.Initialize(config.Value{})

			Expect(err).To(MatchError(ErrLifecycleViolation))
		})

		It("should report engine failures as config errors", func() {
			engineErr := errors.New("no such preset")
			b = MakeBuilder().
				WithEngine(func(*config.Config) (Frontend, MemorySystem, error) {
					return nil, nil, engineErr
				}).
				Build("Bridge")

			err := b.Initialize(config.Value{})

			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(err).To(MatchError(engineErr))
			Expect(b.Tick()).To(MatchError(ErrLifecycleViolation))
			Expect(b.Initialize(config.Value{})).
				To(MatchError(ErrLifecycleViolation))
		})

		It("should report unknown engines as config errors", func() {
			b = New("Bridge")

			err := b.Initialize(config.Value{Engine: "NoSuchEngine"})

			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(err).To(MatchError(config.ErrInvalid))
		})

		It("should report unreadable files as config errors", func() {
			err := b.Initialize(config.File("testdata/does_not_exist.yaml"))

			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
		})
	})

	Context("when initialized", func() {
		BeforeEach(func() {
			initialize()
		})

		It("should tick the frontend before the memory system", func() {
			gomock.InOrder(
				fe.EXPECT().Tick(),
				ms.EXPECT().Tick(),
				fe.EXPECT().Tick(),
				ms.EXPECT().Tick(),
			)

			Expect(b.Tick()).To(Succeed())
			Expect(b.Tick()).To(Succeed())
			Expect(b.CurrentCycle()).To(Equal(uint64(2)))
		})

		It("should report the clock period", func() {
			ms.EXPECT().TCK().Return(0.833)

			tck, err := b.TCK()

			Expect(err).ToNot(HaveOccurred())
			Expect(tck).To(Equal(0.833))
		})

		It("should reject a nil completion", func() {
			ok, err := b.SendRequest(0x40, false, nil)

			Expect(ok).To(BeFalse())
			Expect(err).To(MatchError(ErrBoundaryContractViolation))
		})

		It("should dispose the completion of a rejected request", func() {
			fe.EXPECT().ReceiveExternalRequest(gomock.Any()).Return(false)
			c := &spyCompletion{}

			ok, err := b.SendRequest(0x40, true, c)

			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(c.disposed).To(Equal(1))
			Expect(c.completed).To(BeEmpty())
			Expect(b.Stats().Rejected).To(Equal(uint64(1)))
			Expect(b.Stats().Outstanding).To(Equal(uint64(0)))
		})

		It("should complete an admitted request once", func() {
			admitAt(3)
			c := &spyCompletion{}

			ok, err := b.SendRequest(0x40, true, c)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(b.Stats().Outstanding).To(Equal(uint64(1)))

			admitted[0].Complete(9)

			Expect(c.completed).To(HaveLen(1))
			Expect(c.completed[0].Addr).To(Equal(int64(0x40)))
			Expect(c.completed[0].Kind).To(Equal(mem.Write))
			Expect(c.completed[0].Arrive).To(Equal(int64(3)))
			Expect(c.completed[0].Depart).To(Equal(int64(9)))
			Expect(c.completed[0].OnDepart).To(BeNil())
			Expect(c.disposed).To(Equal(0))
			Expect(b.Stats()).To(Equal(Stats{Admitted: 1, Completed: 1}))
		})

		It("should report the address given at admission", func() {
			admitAt(0)
			c := &spyCompletion{}
			_, _ = b.SendRequest(0x80, false, c)

			admitted[0].Addr = 0xdead
			admitted[0].Complete(4)

			Expect(c.completed[0].Addr).To(Equal(int64(0x80)))
		})

		It("should panic if a request completes twice", func() {
			admitAt(0)
			_, _ = b.SendRequest(0x40, false, &spyCompletion{})
			req := admitted[0]
			req.Complete(2)

			Expect(func() { b.depart(req) }).
				To(PanicWith(MatchError(ErrBoundaryContractViolation)))
		})

		It("should invoke hooks on admission and completion", func() {
			var poses []*hooking.HookPos
			b.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				poses = append(poses, ctx.Pos)
			}))
			admitAt(0)
			fe.EXPECT().ReceiveExternalRequest(gomock.Any()).Return(false)

			_, _ = b.SendRequest(0x40, false, &spyCompletion{})
			_, _ = b.SendRequest(0x80, false, &spyCompletion{})
			admitted[0].Complete(5)

			Expect(poses).To(Equal([]*hooking.HookPos{
				hooking.HookPosTaskStart,
				HookPosReqReject,
				hooking.HookPosTaskEnd,
			}))
		})

		It("should refuse to be destroyed before finalization", func() {
			Expect(b.Destroy()).To(MatchError(ErrLifecycleViolation))
		})

		Context("when finalized", func() {
			var (
				pending *spyCompletion
				report  FinalizeReport
			)

			BeforeEach(func() {
				admitAt(2)
				pending = &spyCompletion{}
				_, _ = b.SendRequest(0x100, false, pending)

				gomock.InOrder(
					fe.EXPECT().Finalize(),
					ms.EXPECT().Finalize(),
				)

				var err error
				report, err = b.Finalize()
				Expect(err).ToNot(HaveOccurred())
			})

			It("should report outstanding requests without completing them",
				func() {
					Expect(report.Outstanding).To(HaveLen(1))
					Expect(report.Outstanding[0].Addr).To(Equal(int64(0x100)))
					Expect(report.Outstanding[0].Arrive).To(Equal(int64(2)))
					Expect(report.Stats.Outstanding).To(Equal(uint64(1)))
					Expect(report.EngineStats).To(HaveKeyWithValue("reads", 3.0))
					Expect(pending.completed).To(BeEmpty())
					Expect(pending.disposed).To(Equal(0))
				})

			It("should reject a second finalization", func() {
				_, err := b.Finalize()

				Expect(err).To(MatchError(ErrLifecycleViolation))
			})

			It("should reject tick and send request", func() {
				c := &spyCompletion{}

				ok, err := b.SendRequest(0x40, false, c)

				Expect(ok).To(BeFalse())
				Expect(err).To(MatchError(ErrLifecycleViolation))
				Expect(b.Tick()).To(MatchError(ErrLifecycleViolation))
			})

			It("should still report the clock period", func() {
				ms.EXPECT().TCK().Return(1.25)

				tck, err := b.TCK()

				Expect(err).ToNot(HaveOccurred())
				Expect(tck).To(Equal(1.25))
			})

			It("should tear down in order", func() {
				gomock.InOrder(
					fe.EXPECT().ConnectMemorySystem(gomock.Nil()),
					ms.EXPECT().ConnectFrontend(gomock.Nil()),
				)

				Expect(b.Destroy()).To(Succeed())
				Expect(released).To(Equal([]string{"memory system", "frontend"}))
				Expect(pending.disposed).To(Equal(1))
				Expect(pending.completed).To(BeEmpty())

				Expect(b.Destroy()).To(Succeed())
				Expect(released).To(HaveLen(2))
				Expect(b.Frontend()).To(BeNil())
				Expect(b.MemorySystem()).To(BeNil())
			})
		})
	})
})
