package threading

import (
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/mem/backingstore"
)

var _ = Describe("Scheduler", func() {
	var (
		p       *kernel.PCB
		sched   *Scheduler
		threads []*kernel.TCB
	)

	BeforeEach(func() {
		store, err := backingstore.New(filepath.Join(GinkgoT().TempDir(), "bs"))
		Expect(err).NotTo(HaveOccurred())

		ref, err := kernel.NewRegistry("Registry", store, 3).
			Load(writeScript(GinkgoT().TempDir(), "prog", "a", "b", "c", "d"))
		Expect(err).NotTo(HaveOccurred())

		p = kernel.NewPCB(1, ref)
		sched = NewScheduler(3)
		threads = nil

		for i := 0; i < 3; i++ {
			t := kernel.NewTCB(1, p, i, 3)
			p.AddThread(t)
			Expect(sched.Add(t)).To(Succeed())
			threads = append(threads, t)
		}
	})

	It("should refuse more threads than its limit", func() {
		err := sched.Add(kernel.NewTCB(4, p, 0, 1))

		Expect(errors.Is(err, ErrTooManyThreads)).To(BeTrue())
	})

	It("should rotate ready threads", func() {
		t := sched.Next()
		Expect(t).To(BeIdenticalTo(threads[0]))
		Expect(t.State).To(Equal(kernel.ThreadRunning))

		sched.Yield(t)

		Expect(t.State).To(Equal(kernel.ThreadReady))
		Expect(sched.Next()).To(BeIdenticalTo(threads[1]))
	})

	It("should send unblocked threads to the ready tail", func() {
		t := sched.Next()
		sched.Block(t)

		Expect(t.State).To(Equal(kernel.ThreadBlocked))
		Expect(sched.Blocked()).To(Equal([]*kernel.TCB{t}))

		sched.Unblock(t)

		Expect(sched.Blocked()).To(BeEmpty())
		Expect(sched.Threads()).To(Equal([]*kernel.TCB{threads[1], threads[2], threads[0]}))
	})

	It("should panic when yielding a thread that is not running", func() {
		Expect(func() { sched.Yield(threads[1]) }).To(Panic())
	})

	It("should panic when unblocking a thread that is not blocked", func() {
		Expect(func() { sched.Unblock(threads[1]) }).To(Panic())
	})

	It("should detach terminated threads from their process", func() {
		t := sched.Next()
		sched.Terminate(t)

		Expect(t.State).To(Equal(kernel.ThreadTerminated))
		Expect(p.Threads()).To(Equal([]*kernel.TCB{threads[1], threads[2]}))
		Expect(sched.Add(kernel.NewTCB(4, p, 0, 1))).To(Succeed())
	})

	It("should have work until every thread terminated", func() {
		for _, t := range threads {
			Expect(sched.HasWork()).To(BeTrue())
			sched.Terminate(t)
		}

		Expect(sched.HasWork()).To(BeFalse())
		Expect(p.Threads()).To(BeEmpty())
	})
})
