package kernel

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/osim/mem/backingstore"
)

var _ = Describe("PCB", func() {
	var (
		srcDir   string
		registry *Registry
	)

	newPCB := func(n int) *PCB {
		ref, err := registry.Load(writeScript(srcDir, "prog", numberedLines("P", n)...))
		Expect(err).NotTo(HaveOccurred())

		return NewPCB(1, ref)
	}

	BeforeEach(func() {
		srcDir = GinkgoT().TempDir()
		store, err := backingstore.New(filepath.Join(GinkgoT().TempDir(), "bs"))
		Expect(err).NotTo(HaveOccurred())

		registry = NewRegistry("Registry", store, 3)
	})

	It("should start with the instruction count as its score", func() {
		p := newPCB(5)

		Expect(p.JobLengthScore).To(Equal(5))
		Expect(p.PC).To(Equal(ProgramCounter{}))
		Expect(p.Done()).To(BeFalse())
	})

	It("should advance the program counter across pages", func() {
		p := newPCB(4)

		var trace []ProgramCounter
		for !p.Done() {
			trace = append(trace, p.PC)
			p.Advance()
		}

		Expect(trace).To(Equal([]ProgramCounter{
			{0, 0}, {0, 1}, {0, 2}, {1, 0},
		}))
		Expect(p.PC).To(Equal(ProgramCounter{Page: 2}))
		Expect(p.Executed()).To(Equal(4))
	})

	It("should end exactly at the page count for a full last page", func() {
		p := newPCB(6)

		for !p.Done() {
			p.Advance()
		}

		Expect(p.PC).To(Equal(ProgramCounter{Page: 2}))
		Expect(p.Executed()).To(Equal(6))
	})

	It("should be done at once for an empty script", func() {
		ref, err := registry.Load(writeScript(srcDir, "empty"))
		Expect(err).NotTo(HaveOccurred())

		Expect(NewPCB(1, ref).Done()).To(BeTrue())
	})

	It("should release its script once", func() {
		p := newPCB(2)
		location := p.Script().Location()

		Expect(p.Release()).To(Succeed())
		Expect(p.Release()).To(Succeed())
		Expect(p.Released()).To(BeTrue())
		Expect(location).NotTo(BeAnExistingFile())
	})

	It("should keep its thread list", func() {
		p := newPCB(4)
		t0 := NewTCB(1, p, 0, 2)
		t1 := NewTCB(2, p, 1, 2)

		p.AddThread(t0)
		p.AddThread(t1)
		p.RemoveThread(t0)

		Expect(p.Threads()).To(Equal([]*TCB{t1}))
	})
})

var _ = Describe("TCB", func() {
	var p *PCB

	BeforeEach(func() {
		srcDir := GinkgoT().TempDir()
		store, err := backingstore.New(filepath.Join(GinkgoT().TempDir(), "bs"))
		Expect(err).NotTo(HaveOccurred())

		ref, err := NewRegistry("Registry", store, 3).
			Load(writeScript(srcDir, "prog", numberedLines("P", 7)...))
		Expect(err).NotTo(HaveOccurred())

		p = NewPCB(1, ref)
	})

	It("should stride over the lines of its process", func() {
		t := NewTCB(1, p, 1, 4)

		var trace []ProgramCounter
		for t.HasNext() {
			trace = append(trace, t.PC())
			t.Advance()
		}

		Expect(trace).To(Equal([]ProgramCounter{{0, 1}, {1, 2}}))
		Expect(t.Steps).To(Equal(2))
		Expect(t.PC()).To(Equal(ProgramCounter{Page: 3}))
	})

	It("should run every line exactly once across threads", func() {
		const n = 4

		seen := make(map[ProgramCounter]int)
		total := 0

		for i := 0; i < n; i++ {
			t := NewTCB(1, p, i, n)
			for t.HasNext() {
				seen[t.PC()]++
				t.Advance()
			}

			total += t.Steps
		}

		Expect(total).To(Equal(p.NumLines()))
		Expect(seen).To(HaveLen(p.NumLines()))

		for _, count := range seen {
			Expect(count).To(Equal(1))
		}
	})

	It("should panic on an invalid index", func() {
		Expect(func() { NewTCB(1, p, 4, 4) }).To(Panic())
	})

	It("should name its states", func() {
		Expect(ThreadBlocked.String()).To(Equal("blocked"))
		Expect(ThreadState(9).String()).To(Equal("ThreadState(9)"))
	})
})
